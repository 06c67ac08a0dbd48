// Copyright 2024 The Farm Core Go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package farmcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/farmfe/farm-core-go/internal/farmid"
	"github.com/farmfe/farm-core-go/internal/farmmodule"
)

// ImmutableManifestKey is the blob name the immutable store's
// ModuleId->package-key manifest is persisted under.
const ImmutableManifestKey = "immutable-modules.json"

// CachedPackage groups every cached module of one (name, version) pair
// into a single persisted blob.
type CachedPackage struct {
	List    []CachedModule
	Name    string
	Version string
}

// PackageKey formats the canonical "name@version" cache key.
func PackageKey(name, version string) string { return fmt.Sprintf("%s@%s", name, version) }

// Key returns this package's own canonical key.
func (p CachedPackage) Key() string { return PackageKey(p.Name, p.Version) }

// ImmutableStore is the package-grouped cache: modules sharing
// (package_name, package_version) are persisted together, keyed by
// "name@version", with an O(1) ModuleId->package-key manifest and its
// reverse for incremental package updates.
type ImmutableStore struct {
	store *Store

	mu              sync.Mutex
	cachedModules   map[farmid.ModuleId]CachedModule
	manifest        map[farmid.ModuleId]string
	manifestReverse map[string]map[farmid.ModuleId]struct{}
}

// NewImmutableStore constructs an ImmutableStore backed by store, loading
// any previously persisted manifest.
func NewImmutableStore(ctx context.Context, store *Store) (*ImmutableStore, error) {
	s := &ImmutableStore{
		store:           store,
		cachedModules:   make(map[farmid.ModuleId]CachedModule),
		manifest:        make(map[farmid.ModuleId]string),
		manifestReverse: make(map[string]map[farmid.ModuleId]struct{}),
	}

	data, ok := store.ReadCache(ctx, ImmutableManifestKey)
	if !ok {
		return s, nil
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("corrupt immutable-modules manifest: %w", err)
	}
	for rawID, packageKey := range raw {
		id := parseManifestModuleId(rawID)
		s.manifest[id] = packageKey
		bucket, ok := s.manifestReverse[packageKey]
		if !ok {
			bucket = make(map[farmid.ModuleId]struct{})
			s.manifestReverse[packageKey] = bucket
		}
		bucket[id] = struct{}{}
	}
	return s, nil
}

func parseManifestModuleId(raw string) farmid.ModuleId {
	path, query, _ := strings.Cut(raw, "?")
	if query != "" {
		query = "?" + query
	}
	return farmid.NewRaw(path, query)
}

// readCachedPackage reads and deserializes packageKey's blob. A missing
// blob for a manifest-referenced key is the fatal "cache-broken"
// condition — the caller is instructed to delete the cache directory.
func (s *ImmutableStore) readCachedPackage(ctx context.Context, packageKey string) (CachedPackage, error) {
	data, ok := s.store.ReadCache(ctx, packageKey)
	if !ok {
		return CachedPackage{}, fmt.Errorf("cache broken: package %q referenced by manifest but missing, please delete the cache directory and retry", packageKey)
	}
	var pkg CachedPackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return CachedPackage{}, fmt.Errorf("cache broken: package %q corrupt: %w", packageKey, err)
	}
	return pkg, nil
}

// loadPackageLocked reads packageKey's blob into cachedModules if not
// already resident. Caller must hold s.mu.
func (s *ImmutableStore) loadPackageLocked(ctx context.Context, packageKey string) error {
	pkg, err := s.readCachedPackage(ctx, packageKey)
	if err != nil {
		return err
	}
	for _, m := range pkg.List {
		s.cachedModules[m.Module.Id] = m
	}
	return nil
}

func (s *ImmutableStore) IsCacheChanged(module *farmmodule.Module) bool {
	return !s.HasCache(module.Id)
}

func (s *ImmutableStore) HasCache(key farmid.ModuleId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cachedModules[key]; ok {
		return true
	}
	packageKey, ok := s.manifest[key]
	if !ok {
		return false
	}
	return s.store.HasCache(packageKey)
}

func (s *ImmutableStore) SetCache(key farmid.ModuleId, module CachedModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedModules[key] = module
}

// GetCache removes and returns key's cached module, lazily loading its
// whole package blob into memory on first access.
func (s *ImmutableStore) GetCache(ctx context.Context, key farmid.ModuleId) (CachedModule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.cachedModules[key]; ok {
		delete(s.cachedModules, key)
		return m, true
	}
	packageKey, ok := s.manifest[key]
	if !ok {
		return CachedModule{}, false
	}
	if err := s.loadPackageLocked(ctx, packageKey); err != nil {
		return CachedModule{}, false
	}
	m, ok := s.cachedModules[key]
	if ok {
		delete(s.cachedModules, key)
	}
	return m, ok
}

// GetCacheRef is the non-destructive counterpart of GetCache.
func (s *ImmutableStore) GetCacheRef(ctx context.Context, key farmid.ModuleId) (CachedModule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.cachedModules[key]; ok {
		return m, true
	}
	packageKey, ok := s.manifest[key]
	if !ok {
		return CachedModule{}, false
	}
	if err := s.loadPackageLocked(ctx, packageKey); err != nil {
		return CachedModule{}, false
	}
	m, ok := s.cachedModules[key]
	return m, ok
}

func (s *ImmutableStore) InvalidateCache(key farmid.ModuleId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cachedModules, key)
}

func (s *ImmutableStore) CacheOutdated(key farmid.ModuleId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	packageKey, ok := s.manifest[key]
	if !ok {
		return false
	}
	return !s.store.HasCache(packageKey)
}

// WriteCache groups every resident cached module by package, extends any
// already-cached package with newly arrived modules rather than
// rewriting it wholesale, then persists the ModuleId->package-key
// manifest.
func (s *ImmutableStore) WriteCache(ctx context.Context) error {
	s.mu.Lock()

	// Snapshot manifestReverse before this round's ids are merged into it
	// below, so flushPackage can tell "already persisted before this call"
	// apart from "new this round" instead of seeing its own batch reflected
	// back as already-cached.
	manifestReverseSnapshot := make(map[string]map[farmid.ModuleId]struct{}, len(s.manifestReverse))
	for k, v := range s.manifestReverse {
		existing := make(map[farmid.ModuleId]struct{}, len(v))
		for id := range v {
			existing[id] = struct{}{}
		}
		manifestReverseSnapshot[k] = existing
	}

	packages := make(map[string][]farmid.ModuleId)
	for id, m := range s.cachedModules {
		packageKey := PackageKey(m.Module.PackageName, m.Module.PackageVersion)
		packages[packageKey] = append(packages[packageKey], id)
		s.manifest[id] = packageKey
		bucket, ok := s.manifestReverse[packageKey]
		if !ok {
			bucket = make(map[farmid.ModuleId]struct{})
			s.manifestReverse[packageKey] = bucket
		}
		bucket[id] = struct{}{}
	}
	cachedSnapshot := make(map[farmid.ModuleId]CachedModule, len(s.cachedModules))
	for k, v := range s.cachedModules {
		cachedSnapshot[k] = v
	}
	manifestSnapshot := make(map[farmid.ModuleId]string, len(s.manifest))
	for k, v := range s.manifest {
		manifestSnapshot[k] = v
	}
	s.mu.Unlock()

	for packageKey, moduleIDs := range packages {
		if err := s.flushPackage(ctx, packageKey, moduleIDs, cachedSnapshot, manifestReverseSnapshot); err != nil {
			return err
		}
	}

	raw := make(map[string]string, len(manifestSnapshot))
	for id, packageKey := range manifestSnapshot {
		raw[id.String()] = packageKey
	}
	manifestBytes, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	storeKey := StoreKey{Name: ImmutableManifestKey, Key: HashKey(string(manifestBytes))}
	return s.store.WriteCache(ctx, map[StoreKey][]byte{storeKey: manifestBytes})
}

func (s *ImmutableStore) flushPackage(
	ctx context.Context,
	packageKey string,
	moduleIDs []farmid.ModuleId,
	cachedSnapshot map[farmid.ModuleId]CachedModule,
	manifestReverseSnapshot map[string]map[farmid.ModuleId]struct{},
) error {
	existing, alreadyCached := manifestReverseSnapshot[packageKey]

	if alreadyCached {
		var newIDs []farmid.ModuleId
		for _, id := range moduleIDs {
			if _, in := existing[id]; !in {
				newIDs = append(newIDs, id)
			}
		}
		if len(newIDs) == 0 {
			return nil
		}
		pkg, err := s.readCachedPackage(ctx, packageKey)
		if err != nil {
			return err
		}
		for _, id := range newIDs {
			pkg.List = append(pkg.List, cachedSnapshot[id])
		}
		return s.writePackageBlob(ctx, packageKey, pkg.List)
	}

	var list []CachedModule
	for _, id := range moduleIDs {
		list = append(list, cachedSnapshot[id])
	}
	return s.writePackageBlob(ctx, packageKey, list)
}

func (s *ImmutableStore) writePackageBlob(ctx context.Context, packageKey string, list []CachedModule) error {
	ids := make([]string, len(list))
	for i, m := range list {
		ids[i] = m.Module.Id.String()
	}
	sort.Strings(ids)

	name, version, _ := strings.Cut(packageKey, "@")
	pkg := CachedPackage{List: list, Name: name, Version: version}
	data, err := json.Marshal(pkg)
	if err != nil {
		return err
	}
	storeKey := StoreKey{Name: packageKey, Key: HashKey(strings.Join(ids, ","))}
	return s.store.WriteSingleCache(ctx, storeKey, data)
}
