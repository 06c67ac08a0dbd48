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
	"fmt"
	"sync"

	"github.com/farmfe/farm-core-go/internal/farmid"
	"github.com/farmfe/farm-core-go/internal/farmmodule"
)

// Manager routes SetCache/HasCache/IsCacheChanged by a module's Immutable
// flag (GetCache tries the mutable store, then the immutable one), and
// serializes the flush cycle behind a coarse mutex.
type Manager struct {
	mu        sync.Mutex
	mutable   ModuleMemoryStore
	immutable ModuleMemoryStore
}

// NewManager constructs a Manager routing between mutable and immutable.
func NewManager(mutable, immutable ModuleMemoryStore) *Manager {
	return &Manager{mutable: mutable, immutable: immutable}
}

func (m *Manager) storeFor(immutable bool) ModuleMemoryStore {
	if immutable {
		return m.immutable
	}
	return m.mutable
}

func (m *Manager) SetCache(key farmid.ModuleId, module CachedModule) {
	m.storeFor(module.Module.Immutable).SetCache(key, module)
}

func (m *Manager) HasCache(key farmid.ModuleId, immutable bool) bool {
	return m.storeFor(immutable).HasCache(key)
}

func (m *Manager) IsCacheChanged(module *farmmodule.Module) bool {
	return m.storeFor(module.Immutable).IsCacheChanged(module)
}

// GetCache consults the mutable store first, falling back to the
// immutable store; a miss in both is the fatal cache-broken condition.
func (m *Manager) GetCache(ctx context.Context, key farmid.ModuleId) (CachedModule, error) {
	if cached, ok := m.mutable.GetCache(ctx, key); ok {
		return cached, nil
	}
	if cached, ok := m.immutable.GetCache(ctx, key); ok {
		return cached, nil
	}
	return CachedModule{}, fmt.Errorf("cache broken: %v has neither a mutable nor immutable cache entry, please delete the cache directory and retry", key)
}

func (m *Manager) InvalidateCache(key farmid.ModuleId, immutable bool) {
	m.storeFor(immutable).InvalidateCache(key)
}

func (m *Manager) CacheOutdated(key farmid.ModuleId, immutable bool) bool {
	return m.storeFor(immutable).CacheOutdated(key)
}

// WriteCache flushes both stores to disk under the manager's flush mutex.
func (m *Manager) WriteCache(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.mutable.WriteCache(ctx); err != nil {
		return err
	}
	return m.immutable.WriteCache(ctx)
}
