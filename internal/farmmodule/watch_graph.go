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

package farmmodule

import (
	"sync"

	"github.com/farmfe/farm-core-go/internal/farmid"
)

// WatchDependency is a single non-module file a module depends on for
// invalidation purposes, e.g. a config file or template
// partial that isn't itself resolved/loaded as a module.
type WatchDependency struct {
	// Timestamp is nanoseconds since the Unix epoch, as recorded the
	// last time this dependency was observed.
	Timestamp int64
	// Hash is the content hash recorded the last time this dependency
	// was observed, empty if only timestamp-mode invalidation is used.
	Hash string
}

// CachedWatchDependency is the serialized form of a WatchDependency stored
// alongside a CachedModule: the cache layer persists these
// so a cache hit can reseed the WatchGraph without re-resolving anything.
type CachedWatchDependency struct {
	Dependency farmid.ModuleId
	Timestamp  int64
	Hash       string
}

// WatchGraph is a secondary directed graph, keyed by ModuleId, recording
// non-module watched files as dependencies of modules. It
// shares the module graph's general locking discipline (single writer /
// multiple readers) but is otherwise independent of ModuleGraph.
type WatchGraph struct {
	mu   sync.RWMutex
	deps map[farmid.ModuleId]map[farmid.ModuleId]WatchDependency
}

// NewWatchGraph constructs an empty WatchGraph.
func NewWatchGraph() *WatchGraph {
	return &WatchGraph{deps: make(map[farmid.ModuleId]map[farmid.ModuleId]WatchDependency)}
}

// SetWatchDependency records that module depends on watched for
// invalidation purposes, with the given timestamp/hash snapshot.
func (wg *WatchGraph) SetWatchDependency(module, watched farmid.ModuleId, dep WatchDependency) {
	wg.mu.Lock()
	defer wg.mu.Unlock()
	bucket, ok := wg.deps[module]
	if !ok {
		bucket = make(map[farmid.ModuleId]WatchDependency)
		wg.deps[module] = bucket
	}
	bucket[watched] = dep
}

// WatchDependencies returns every watch dependency recorded for module.
func (wg *WatchGraph) WatchDependencies(module farmid.ModuleId) map[farmid.ModuleId]WatchDependency {
	wg.mu.RLock()
	defer wg.mu.RUnlock()
	out := make(map[farmid.ModuleId]WatchDependency, len(wg.deps[module]))
	for k, v := range wg.deps[module] {
		out[k] = v
	}
	return out
}

// ClearModule removes every watch dependency recorded for module, used by
// SeedFromCached to rebuild a module's watch-root
// set from scratch on a cache hit rather than accreting stale entries.
func (wg *WatchGraph) ClearModule(module farmid.ModuleId) {
	wg.mu.Lock()
	defer wg.mu.Unlock()
	delete(wg.deps, module)
}

// SeedFromCached rebuilds module's watch dependencies from a cached
// module's recorded watch-dependency list, restoring the watch-graph
// roots for a module retrieved from cache.
func (wg *WatchGraph) SeedFromCached(module farmid.ModuleId, cached []CachedWatchDependency) {
	wg.ClearModule(module)
	wg.mu.Lock()
	defer wg.mu.Unlock()
	bucket := make(map[farmid.ModuleId]WatchDependency, len(cached))
	for _, c := range cached {
		bucket[c.Dependency] = WatchDependency{Timestamp: c.Timestamp, Hash: c.Hash}
	}
	wg.deps[module] = bucket
}
