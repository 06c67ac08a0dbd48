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

	"github.com/farmfe/farm-core-go/internal/farmid"
	"github.com/farmfe/farm-core-go/internal/farmmodule"
)

// CachedModuleDependency is one persisted outgoing edge of a cached
// module.
type CachedModuleDependency struct {
	Dependency farmid.ModuleId
	EdgeInfo   farmmodule.ModuleGraphEdgeDataItem
}

// CachedModule is the persisted form of a Module plus enough of its
// graph neighborhood to rebuild edges and watch-roots on a cache hit
// without re-resolving anything.
type CachedModule struct {
	Module            farmmodule.Module
	Dependencies      []CachedModuleDependency
	WatchDependencies []farmmodule.CachedWatchDependency
}

// ModuleMemoryStore is the capability set both the mutable and immutable
// stores implement.
type ModuleMemoryStore interface {
	IsCacheChanged(module *farmmodule.Module) bool
	HasCache(key farmid.ModuleId) bool
	SetCache(key farmid.ModuleId, module CachedModule)
	// GetCache is the only destructive read: a hit removes the entry from
	// the in-memory map.
	GetCache(ctx context.Context, key farmid.ModuleId) (CachedModule, bool)
	// GetCacheRef is a non-destructive read; a caller holding it must not
	// also call GetCache for the same key.
	GetCacheRef(ctx context.Context, key farmid.ModuleId) (CachedModule, bool)
	InvalidateCache(key farmid.ModuleId)
	CacheOutdated(key farmid.ModuleId) bool
	WriteCache(ctx context.Context) error
}
