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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farmfe/farm-core-go/internal/farmid"
)

func id(name string) farmid.ModuleId { return farmid.New(name, nil) }

// constructTestModuleGraph builds a diamond-plus-extra fixture covering
// multi-parent dependencies, a shared grandchild, and an isolated branch:
//
//	          A   B
//	         / \ / \
//	        C   D   E
//	         \ /    |
//	          F     G
//
// dynamic dependencies: A->D, C->F, D->F, E->G; others static; cyclic F->A.
func constructTestModuleGraph(t *testing.T) *ModuleGraph {
	t.Helper()
	mg := NewModuleGraph()
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		mg.AddModule(Module{Id: id(name)})
	}

	type edge struct {
		from, to string
		order    int
	}
	static := []edge{{"A", "C", 0}, {"B", "D", 0}, {"B", "E", 1}}
	dynamic := []edge{{"A", "D", 1}, {"C", "F", 0}, {"D", "F", 0}, {"E", "G", 0}}

	for _, e := range static {
		mg.AddEdgeItem(id(e.from), id(e.to), ModuleGraphEdgeDataItem{
			Source: "./" + e.to, Kind: farmid.Import, Order: e.order,
		})
	}
	for _, e := range dynamic {
		mg.AddEdgeItem(id(e.from), id(e.to), ModuleGraphEdgeDataItem{
			Source: "./" + e.to, Kind: farmid.ResolveKind{Tag: farmid.KindDynamicImport}, Order: e.order,
		})
	}
	mg.AddEdgeItem(id("F"), id("A"), ModuleGraphEdgeDataItem{Source: "./F", Kind: farmid.Import, Order: 0})

	mg.Entries = map[farmid.ModuleId]string{id("A"): "A", id("B"): "B"}
	return mg
}

func TestModuleGraphTopoSort(t *testing.T) {
	t.Parallel()
	mg := constructTestModuleGraph(t)
	sorted, cycles := mg.TopoSort()

	require.Equal(t, [][]farmid.ModuleId{{id("A"), id("C"), id("F")}}, cycles)
	require.Equal(t, []farmid.ModuleId{
		id("B"), id("E"), id("G"), id("A"), id("D"), id("C"), id("F"),
	}, sorted)
}

func TestModuleGraphDependenciesOrder(t *testing.T) {
	t.Parallel()
	mg := constructTestModuleGraph(t)

	deps := mg.Dependencies(id("A"))
	require.Len(t, deps, 2)
	require.Equal(t, id("C"), deps[0].Id)
	require.Equal(t, id("D"), deps[1].Id)
	require.True(t, deps[1].Edge.IsDynamic())
	require.False(t, deps[0].Edge.IsDynamic())
}

func TestAddEdgeItemPanicsOnMissingEndpoint(t *testing.T) {
	t.Parallel()
	mg := NewModuleGraph()
	mg.AddModule(Module{Id: id("A")})
	require.Panics(t, func() {
		mg.AddEdgeItem(id("A"), id("missing"), ModuleGraphEdgeDataItem{Source: "./x"})
	})
}

func TestAddEdgeItemIsIdempotent(t *testing.T) {
	t.Parallel()
	mg := NewModuleGraph()
	mg.AddModule(Module{Id: id("A")})
	mg.AddModule(Module{Id: id("B")})

	item := ModuleGraphEdgeDataItem{Source: "./b", Kind: farmid.Import, Order: 0}
	mg.AddEdgeItem(id("A"), id("B"), item)
	mg.AddEdgeItem(id("A"), id("B"), item)

	deps := mg.Dependencies(id("A"))
	require.Len(t, deps, 1)
	require.Len(t, deps[0].Edge.Items(), 1)
}

func TestAddEdgeItemDistinctItemsPreserveInsertionOrder(t *testing.T) {
	t.Parallel()
	mg := NewModuleGraph()
	mg.AddModule(Module{Id: id("A")})
	mg.AddModule(Module{Id: id("B")})

	first := ModuleGraphEdgeDataItem{Source: "./b", Kind: farmid.Import, Order: 0}
	second := ModuleGraphEdgeDataItem{Source: "./b", Kind: farmid.ResolveKind{Tag: farmid.KindDynamicImport}, Order: 0}
	mg.AddEdgeItem(id("A"), id("B"), first)
	mg.AddEdgeItem(id("A"), id("B"), second)

	deps := mg.Dependencies(id("A"))
	require.Equal(t, []ModuleGraphEdgeDataItem{first, second}, deps[0].Edge.Items())
	require.False(t, deps[0].Edge.IsDynamic())
}

func TestAddModuleReplacesPreservingEdges(t *testing.T) {
	t.Parallel()
	mg := NewModuleGraph()
	mg.AddModule(Module{Id: id("A")})
	mg.AddModule(Module{Id: id("B")})
	mg.AddEdgeItem(id("A"), id("B"), ModuleGraphEdgeDataItem{Source: "./b", Order: 0})

	mg.AddModule(Module{Id: id("A"), ContentHash: "deadbeef"})

	m, ok := mg.Module(id("A"))
	require.True(t, ok)
	require.Equal(t, "deadbeef", m.ContentHash)
	require.Len(t, mg.Dependencies(id("A")), 1)
}

func TestFileModuleIdsBucketsByRelativePath(t *testing.T) {
	t.Parallel()
	mg := NewModuleGraph()
	plain := farmid.New("foo.css", nil)
	raw := farmid.New("foo.css", []farmid.QueryParam{{Key: "raw"}})
	mg.AddModule(Module{Id: plain})
	mg.AddModule(Module{Id: raw})

	bucket := mg.FileModuleIds[plain.FileModuleId()]
	require.Equal(t, []farmid.ModuleId{plain, raw}, bucket)
}
