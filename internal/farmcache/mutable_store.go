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
	"sync"

	"github.com/farmfe/farm-core-go/internal/farmid"
	"github.com/farmfe/farm-core-go/internal/farmmodule"
)

// MutableStore is the per-module cache:
// cache-store key = (name = id.String(), key = sha256(content_hash||id)).
type MutableStore struct {
	store *Store

	mu     sync.Mutex
	cached map[farmid.ModuleId]CachedModule
}

// NewMutableStore constructs a MutableStore backed by store.
func NewMutableStore(store *Store) *MutableStore {
	return &MutableStore{store: store, cached: make(map[farmid.ModuleId]CachedModule)}
}

func (s *MutableStore) genStoreKey(module *farmmodule.Module) StoreKey {
	return StoreKey{
		Name: module.Id.String(),
		Key:  HashKey(module.ContentHash + module.Id.String()),
	}
}

func (s *MutableStore) IsCacheChanged(module *farmmodule.Module) bool {
	return s.store.IsCacheChanged(s.genStoreKey(module))
}

func (s *MutableStore) HasCache(key farmid.ModuleId) bool {
	s.mu.Lock()
	_, ok := s.cached[key]
	s.mu.Unlock()
	if ok {
		return true
	}
	return s.store.HasCache(key.String())
}

func (s *MutableStore) SetCache(key farmid.ModuleId, module CachedModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached[key] = module
}

// GetCache removes and returns the cached module for key, falling back to
// disk if it isn't (or is no longer) resident in memory.
func (s *MutableStore) GetCache(ctx context.Context, key farmid.ModuleId) (CachedModule, bool) {
	s.mu.Lock()
	if m, ok := s.cached[key]; ok {
		delete(s.cached, key)
		s.mu.Unlock()
		return m, true
	}
	s.mu.Unlock()

	data, ok := s.store.ReadCache(ctx, key.String())
	if !ok {
		return CachedModule{}, false
	}
	var m CachedModule
	if err := json.Unmarshal(data, &m); err != nil {
		return CachedModule{}, false
	}
	return m, true
}

// GetCacheRef returns the cached module for key without removing it,
// populating the in-memory map from disk on first access so subsequent
// refs are cheap.
func (s *MutableStore) GetCacheRef(ctx context.Context, key farmid.ModuleId) (CachedModule, bool) {
	s.mu.Lock()
	if m, ok := s.cached[key]; ok {
		s.mu.Unlock()
		return m, true
	}
	s.mu.Unlock()

	data, ok := s.store.ReadCache(ctx, key.String())
	if !ok {
		return CachedModule{}, false
	}
	var m CachedModule
	if err := json.Unmarshal(data, &m); err != nil {
		return CachedModule{}, false
	}
	s.mu.Lock()
	s.cached[key] = m
	s.mu.Unlock()
	return m, true
}

func (s *MutableStore) InvalidateCache(key farmid.ModuleId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cached, key)
}

func (s *MutableStore) CacheOutdated(key farmid.ModuleId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cached[key]
	return !ok
}

// WriteCache flushes every in-memory module whose store key has changed
// to disk, then writes the manifest once.
func (s *MutableStore) WriteCache(ctx context.Context) error {
	s.mu.Lock()
	toWrite := make(map[StoreKey][]byte)
	for _, m := range s.cached {
		storeKey := s.genStoreKey(&m.Module)
		if !s.store.IsCacheChanged(storeKey) {
			continue
		}
		data, err := json.Marshal(m)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		toWrite[storeKey] = data
	}
	s.mu.Unlock()

	return s.store.WriteCache(ctx, toWrite)
}
