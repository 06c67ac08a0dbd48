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

func TestWatchGraphSetAndGet(t *testing.T) {
	t.Parallel()
	wg := NewWatchGraph()
	module := id("src/index.ts")
	config := id("farm.config.ts")

	wg.SetWatchDependency(module, config, WatchDependency{Timestamp: 1, Hash: "abc"})

	deps := wg.WatchDependencies(module)
	require.Equal(t, WatchDependency{Timestamp: 1, Hash: "abc"}, deps[config])
}

func TestWatchGraphClearModule(t *testing.T) {
	t.Parallel()
	wg := NewWatchGraph()
	module := id("src/index.ts")
	wg.SetWatchDependency(module, id("a.json"), WatchDependency{Timestamp: 1})

	wg.ClearModule(module)

	require.Empty(t, wg.WatchDependencies(module))
}

func TestWatchGraphSeedFromCachedReplacesExisting(t *testing.T) {
	t.Parallel()
	wg := NewWatchGraph()
	module := id("src/index.ts")
	wg.SetWatchDependency(module, id("stale.json"), WatchDependency{Timestamp: 1})

	wg.SeedFromCached(module, []CachedWatchDependency{
		{Dependency: id("fresh.json"), Timestamp: 2, Hash: "h"},
	})

	deps := wg.WatchDependencies(module)
	require.Len(t, deps, 1)
	require.Equal(t, WatchDependency{Timestamp: 2, Hash: "h"}, deps[id("fresh.json")])
}

func TestWatchGraphIndependentModulesDoNotShareBuckets(t *testing.T) {
	t.Parallel()
	wg := NewWatchGraph()
	wg.SetWatchDependency(id("a.ts"), id("shared.json"), WatchDependency{Timestamp: 1})
	wg.SetWatchDependency(id("b.ts"), id("shared.json"), WatchDependency{Timestamp: 2})

	require.Equal(t, int64(1), wg.WatchDependencies(id("a.ts"))[id("shared.json")].Timestamp)
	require.Equal(t, int64(2), wg.WatchDependencies(id("b.ts"))[id("shared.json")].Timestamp)
}
