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
	"fmt"
	"sort"
	"sync"

	"github.com/farmfe/farm-core-go/internal/farmid"
	"github.com/farmfe/farm-core-go/pkg/dag"
)

// ModuleGraphEdgeDataItem is a single (source, kind, order) tuple;
// multiple items may share the same (from, to) pair — e.g. a module
// imported once statically and once via a dynamic import() of the same
// specifier keeps both items on one ModuleGraphEdge.
type ModuleGraphEdgeDataItem struct {
	Source string
	Kind   farmid.ResolveKind
	Order  int
}

// ModuleGraphEdge is the multiset of ModuleGraphEdgeDataItems between one
// (from, to) pair.
type ModuleGraphEdge struct {
	items []ModuleGraphEdgeDataItem
}

// NewModuleGraphEdge constructs an edge carrying a single item.
func NewModuleGraphEdge(item ModuleGraphEdgeDataItem) ModuleGraphEdge {
	return ModuleGraphEdge{items: []ModuleGraphEdgeDataItem{item}}
}

// Items returns the edge's data items in insertion order.
func (e ModuleGraphEdge) Items() []ModuleGraphEdgeDataItem { return e.items }

// Contains reports whether item (by value equality) is already present.
func (e ModuleGraphEdge) Contains(item ModuleGraphEdgeDataItem) bool {
	for _, existing := range e.items {
		if existing == item {
			return true
		}
	}
	return false
}

// IsDynamic reports whether every item on this edge is a dynamic import.
func (e ModuleGraphEdge) IsDynamic() bool {
	if len(e.items) == 0 {
		return false
	}
	for _, item := range e.items {
		if item.Kind.Tag != farmid.KindDynamicImport {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the edge carries no items.
func (e ModuleGraphEdge) IsEmpty() bool { return len(e.items) == 0 }

// MinOrder returns the minimum Order across all items, used to sort a
// module's dependencies.
func (e ModuleGraphEdge) MinOrder() (int, bool) {
	if len(e.items) == 0 {
		return 0, false
	}
	min := e.items[0].Order
	for _, item := range e.items[1:] {
		if item.Order < min {
			min = item.Order
		}
	}
	return min, true
}

// UpdateKind bulk-retags every item on the edge to kind; used when the
// same specifier is later discovered to be imported with a different
// kind — e.g. a static import later also reached via a dynamic import().
func (e *ModuleGraphEdge) UpdateKind(kind farmid.ResolveKind) {
	for i := range e.items {
		e.items[i].Kind = kind
	}
}

func (e *ModuleGraphEdge) appendIfAbsent(item ModuleGraphEdgeDataItem) {
	if e.Contains(item) {
		return
	}
	e.items = append(e.items, item)
}

// Dependency is a (ModuleId, edge) pair returned by ModuleGraph.Dependencies.
type Dependency struct {
	Id   farmid.ModuleId
	Edge ModuleGraphEdge
}

// ModuleGraph is the stable directed graph of Modules, with parallel
// edges between the same pair aggregated into one ModuleGraphEdge. Its
// methods are safe for concurrent use: each takes the graph's own
// single-writer/multiple-reader lock.
type ModuleGraph struct {
	mu sync.RWMutex

	g       *dag.Graph[farmid.ModuleId, ModuleGraphEdge]
	modules map[farmid.ModuleId]*Module

	// Entries maps an entry ModuleId to the entry name it was requested
	// under.
	Entries map[farmid.ModuleId]string

	// FileModuleIds buckets every full ModuleId sharing a relative path
	// (ignoring query) together, e.g. foo.css and foo.css?raw.
	FileModuleIds map[farmid.ModuleId][]farmid.ModuleId
}

// NewModuleGraph constructs an empty ModuleGraph.
func NewModuleGraph() *ModuleGraph {
	return &ModuleGraph{
		g:             dag.NewGraph[farmid.ModuleId, ModuleGraphEdge](),
		modules:       make(map[farmid.ModuleId]*Module),
		Entries:       make(map[farmid.ModuleId]string),
		FileModuleIds: make(map[farmid.ModuleId][]farmid.ModuleId),
	}
}

// SetEntry registers id as an entry point named name.
func (mg *ModuleGraph) SetEntry(id farmid.ModuleId, name string) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	mg.Entries[id] = name
}

// HasModule reports whether a node for id already exists.
func (mg *ModuleGraph) HasModule(id farmid.ModuleId) bool {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	return mg.g.HasNode(id)
}

// Module returns the module stored for id, if present.
func (mg *ModuleGraph) Module(id farmid.ModuleId) (*Module, bool) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	m, ok := mg.modules[id]
	return m, ok
}

// AddModule idempotently inserts m, replacing any existing node with the
// same id while preserving its edges: dag.Graph keeps edges keyed by
// node identity, not by value, so replacing the stored *Module for an
// id that already has a dag node never touches adjacency.
func (mg *ModuleGraph) AddModule(m Module) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	mg.addModuleLocked(m)
}

func (mg *ModuleGraph) addModuleLocked(m Module) {
	id := m.Id
	mg.g.AddNode(id)
	mCopy := m
	mg.modules[id] = &mCopy

	fileID := id.FileModuleId()
	bucket := mg.FileModuleIds[fileID]
	for _, existing := range bucket {
		if existing == id {
			return
		}
	}
	mg.FileModuleIds[fileID] = append(bucket, id)
}

// AddEdgeItem appends item to the edge from -> to, creating the edge if
// absent. Both endpoints must already exist as nodes — callers (the
// builder) are responsible for that invariant; violating it panics.
// Adding an equal item twice is a no-op.
func (mg *ModuleGraph) AddEdgeItem(from, to farmid.ModuleId, item ModuleGraphEdgeDataItem) {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	if !mg.g.HasNode(from) {
		panic(fmt.Sprintf("module %v not found in the module graph", from))
	}
	if !mg.g.HasNode(to) {
		panic(fmt.Sprintf("module %v not found in the module graph", to))
	}

	if edge, ok := mg.g.Edge(from, to); ok {
		edge.appendIfAbsent(item)
		mg.g.SetEdge(from, to, edge)
		return
	}
	mg.g.SetEdge(from, to, NewModuleGraphEdge(item))
}

// GetDepBySource finds the outgoing edge from module carrying source
// (and, if kind is non-nil, also matching kind), returning the adjacent
// module id.
func (mg *ModuleGraph) GetDepBySource(module farmid.ModuleId, source string, kind *farmid.ResolveKind) (farmid.ModuleId, bool) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()

	if !mg.g.HasNode(module) {
		panic(fmt.Sprintf("module %v not found in the module graph", module))
	}
	for _, to := range mg.g.Successors(module, nil) {
		edge, _ := mg.g.Edge(module, to)
		for _, item := range edge.items {
			if item.Source != source {
				continue
			}
			if kind != nil && item.Kind != *kind {
				continue
			}
			return to, true
		}
	}
	return farmid.ModuleId{}, false
}

// Dependencies returns (dependency_id, edge) pairs for module, sorted by
// the minimum edge-item Order across each edge. Edges with equal minimum
// Order keep dag.Graph.Successors' map iteration order, which is not
// insertion order and not deterministic.
func (mg *ModuleGraph) Dependencies(module farmid.ModuleId) []Dependency {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	return mg.dependenciesLocked(module)
}

func (mg *ModuleGraph) dependenciesLocked(module farmid.ModuleId) []Dependency {
	if !mg.g.HasNode(module) {
		panic(fmt.Sprintf("module_id %v should be in the module graph", module))
	}
	tos := mg.g.Successors(module, nil)
	deps := make([]Dependency, 0, len(tos))
	for _, to := range tos {
		edge, _ := mg.g.Edge(module, to)
		deps = append(deps, Dependency{Id: to, Edge: edge})
	}

	sort.SliceStable(deps, func(i, j int) bool {
		iOrder, iOk := deps[i].Edge.MinOrder()
		jOrder, jOk := deps[j].Edge.MinOrder()
		if !iOk || !jOk {
			return false
		}
		return iOrder < jOrder
	})
	return deps
}

// TopoSort performs an iterative post-order DFS from each entry (entries
// pre-sorted by id for determinism), returning the reverse of that
// post-order (roots first) plus every cycle discovered.
func (mg *ModuleGraph) TopoSort() ([]farmid.ModuleId, [][]farmid.ModuleId) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()

	entries := make([]farmid.ModuleId, 0, len(mg.Entries))
	for id := range mg.Entries {
		entries = append(entries, id)
	}
	farmid.SortModuleIds(entries)

	result := dag.TopoSort(entries, func(id farmid.ModuleId) []farmid.ModuleId {
		deps := mg.dependenciesLocked(id)
		ids := make([]farmid.ModuleId, len(deps))
		for i, d := range deps {
			ids[i] = d.Id
		}
		return ids
	})
	order := result.Order
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, result.Cycles
}
