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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farmfe/farm-core-go/internal/farmid"
	"github.com/farmfe/farm-core-go/internal/farmmodule"
	"github.com/farmfe/farm-core-go/pkg/storage"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	ctx := context.Background()
	mutableLow, err := NewStore(ctx, storage.NewMemBucket(), nil)
	require.NoError(t, err)
	immutableLow, err := NewStore(ctx, storage.NewMemBucket(), nil)
	require.NoError(t, err)
	immutable, err := NewImmutableStore(ctx, immutableLow)
	require.NoError(t, err)
	return NewManager(NewMutableStore(mutableLow), immutable)
}

func TestManagerRoutesByImmutableFlag(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	mutableModule := farmmodule.Module{Id: farmid.New("src/a.ts", nil), Immutable: false}
	immutableModule := farmmodule.Module{
		Id: farmid.New("node_modules/lodash/a.js", nil), Immutable: true,
		PackageName: "lodash", PackageVersion: "4.17.21",
	}

	m.SetCache(mutableModule.Id, CachedModule{Module: mutableModule})
	m.SetCache(immutableModule.Id, CachedModule{Module: immutableModule})

	require.True(t, m.HasCache(mutableModule.Id, false))
	require.False(t, m.HasCache(mutableModule.Id, true))
	require.True(t, m.HasCache(immutableModule.Id, true))
}

func TestManagerGetCacheFallsBackToImmutable(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	immutableModule := farmmodule.Module{
		Id: farmid.New("node_modules/lodash/a.js", nil), Immutable: true,
		PackageName: "lodash", PackageVersion: "4.17.21",
	}
	m.SetCache(immutableModule.Id, CachedModule{Module: immutableModule})

	got, err := m.GetCache(context.Background(), immutableModule.Id)
	require.NoError(t, err)
	require.Equal(t, immutableModule.Id, got.Module.Id)
}

func TestManagerGetCacheMissInBothIsFatal(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	_, err := m.GetCache(context.Background(), farmid.New("never-cached.ts", nil))
	require.Error(t, err)
	require.Contains(t, err.Error(), "cache broken")
}

func TestManagerWriteCacheFlushesBothStores(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	mutableModule := farmmodule.Module{Id: farmid.New("src/a.ts", nil), ContentHash: "h1"}
	m.SetCache(mutableModule.Id, CachedModule{Module: mutableModule})

	require.NoError(t, m.WriteCache(context.Background()))
	require.True(t, m.mutable.(*MutableStore).store.HasCache(mutableModule.Id.String()))
	require.True(t, m.immutable.(*ImmutableStore).store.HasCache(ImmutableManifestKey))
}
