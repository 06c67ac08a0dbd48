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

// Package farmcache implements the two-tier module cache:
// a low-level versioned directory Store with a JSON manifest and
// compare-and-swap blob writes, the Mutable (per-module) and Immutable
// (package-grouped) stores built on it, and the Manager that dispatches
// between them by a module's immutability. Filesystem reads and writes
// go through the storageos bucket (pkg/storage/storageos) rather than
// reimplementing atomic-rename semantics a second time.
package farmcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/farmfe/farm-core-go/pkg/storage"
)

// Version is part of the cache directory path and invalidates every
// previous cache wholesale across incompatible versions by construction.
const Version = "0.0.1"

// ManifestFile is the name of the name->key mapping file persisted in
// every store's directory.
const ManifestFile = "farm-cache.json"

// Mode selects the development/production path segment.
type Mode int

const (
	ModeDevelopment Mode = iota
	ModeProduction
)

func (m Mode) segment() string {
	if m == ModeDevelopment {
		return "development"
	}
	return "production"
}

// StoreKey is a (name, key) pair: name identifies the cached thing (a
// ModuleId's string form, or a package key), key is its content-derived
// hash. A name maps to at most one key at a time; writing a new key for
// an existing name deletes the old blob.
type StoreKey struct {
	Name string
	Key  string
}

// HashKey sha256-hashes payload and returns the hex digest, the key
// derivation used by both the mutable store (sha256(content_hash||id))
// and the immutable store (sha256(sorted_module_ids joined with ",")).
func HashKey(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Store is the low-level versioned-directory, single-blob-per-key cache
//. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	bucket   storage.ReadWriteBucket
	manifest map[string]string
	logger   *zap.Logger
}

// NewStore constructs (or reopens) a Store rooted at bucket, loading an
// existing manifest if present. bucket is expected to already be scoped
// to <cache_dir>/<Version>-<basename>/<namespace>/<mode>/<name>/ by the
// caller (StorePath computes that layout).
func NewStore(ctx context.Context, bucket storage.ReadWriteBucket, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{bucket: bucket, manifest: make(map[string]string), logger: logger}

	data, err := bucket.Get(ctx, ManifestFile)
	if err != nil {
		if storage.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.manifest); err != nil {
		return nil, fmt.Errorf("corrupt cache manifest: %w", err)
	}
	return s, nil
}

// StorePath computes the versioned directory layout:
// <cache_dir>/<Version>-<basename>/<namespace>/<mode>/<name>/.
func StorePath(cacheDir, basename, namespace, name string, mode Mode) string {
	dir := Version + "-" + basename
	if namespace != "" {
		dir = dir + "/" + namespace
	}
	dir = dir + "/" + mode.segment()
	if name != "" {
		dir = dir + "/" + name
	}
	return cacheDir + "/" + dir
}

// ReadCache returns the blob registered under name, or (nil, false) if
// name has no manifest entry or its blob is missing on disk.
func (s *Store) ReadCache(ctx context.Context, name string) ([]byte, bool) {
	s.mu.RLock()
	key, ok := s.manifest[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	data, err := s.bucket.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// HasCache reports whether name has a manifest entry.
func (s *Store) HasCache(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.manifest[name]
	return ok
}

// IsCacheChanged reports whether storeKey's key differs from (or is
// absent from) the recorded manifest entry for its name — "true" means a
// write is needed.
func (s *Store) IsCacheChanged(storeKey StoreKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing, ok := s.manifest[storeKey.Name]
	return !ok || existing != storeKey.Key
}

// WriteSingleCache compare-and-swaps one blob: if storeKey.Key differs
// from the name's current manifest entry, the old blob (if any) is
// removed, the new one is written, and the manifest entry is updated in
// memory. The manifest file itself is not persisted until
// WriteManifest is called.
func (s *Store) WriteSingleCache(ctx context.Context, storeKey StoreKey, bytes []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.manifest[storeKey.Name]
	if ok && existing == storeKey.Key {
		return nil
	}
	if ok {
		if err := s.bucket.Remove(ctx, existing); err != nil && !storage.IsNotExist(err) {
			s.logger.Warn("failed to remove stale cache blob", zap.String("key", existing), zap.Error(err))
		}
	}
	if err := s.bucket.Put(ctx, storeKey.Key, bytes); err != nil {
		return fmt.Errorf("write cache blob %q: %w", storeKey.Key, err)
	}
	s.manifest[storeKey.Name] = storeKey.Key
	return nil
}

// WriteManifest persists the in-memory manifest as UTF-8 JSON.
func (s *Store) WriteManifest(ctx context.Context) error {
	s.mu.RLock()
	snapshot := make(map[string]string, len(s.manifest))
	for k, v := range s.manifest {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.bucket.Put(ctx, ManifestFile, data)
}

// WriteCache writes every (storeKey, bytes) pair then persists the
// manifest once.
func (s *Store) WriteCache(ctx context.Context, blobs map[StoreKey][]byte) error {
	for storeKey, bytes := range blobs {
		if err := s.WriteSingleCache(ctx, storeKey, bytes); err != nil {
			return err
		}
	}
	return s.WriteManifest(ctx)
}
