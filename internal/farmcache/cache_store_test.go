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

	"github.com/farmfe/farm-core-go/pkg/storage"
)

func TestStoreWriteSingleCacheThenReadCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := NewStore(ctx, storage.NewMemBucket(), nil)
	require.NoError(t, err)

	key := StoreKey{Name: "src/a.ts", Key: HashKey("hash1src/a.ts")}
	require.NoError(t, store.WriteSingleCache(ctx, key, []byte("payload")))

	data, ok := store.ReadCache(ctx, "src/a.ts")
	require.True(t, ok)
	require.Equal(t, "payload", string(data))
}

func TestStoreIsCacheChangedAfterRehydration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bucket := storage.NewMemBucket()

	store, err := NewStore(ctx, bucket, nil)
	require.NoError(t, err)
	key := StoreKey{Name: "src/a.ts", Key: HashKey("h1")}
	require.NoError(t, store.WriteSingleCache(ctx, key, []byte("v1")))
	require.NoError(t, store.WriteManifest(ctx))

	reopened, err := NewStore(ctx, bucket, nil)
	require.NoError(t, err)

	require.False(t, reopened.IsCacheChanged(key))
	require.True(t, reopened.IsCacheChanged(StoreKey{Name: "src/a.ts", Key: HashKey("h2")}))
}

func TestStoreCompareAndSwapRemovesStaleBlob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bucket := storage.NewMemBucket()
	store, err := NewStore(ctx, bucket, nil)
	require.NoError(t, err)

	first := StoreKey{Name: "a", Key: "key1"}
	require.NoError(t, store.WriteSingleCache(ctx, first, []byte("v1")))

	second := StoreKey{Name: "a", Key: "key2"}
	require.NoError(t, store.WriteSingleCache(ctx, second, []byte("v2")))

	_, err = bucket.Get(ctx, "key1")
	require.True(t, storage.IsNotExist(err))

	data, ok := store.ReadCache(ctx, "a")
	require.True(t, ok)
	require.Equal(t, "v2", string(data))
}

func TestStoreWriteCacheWritesManifest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bucket := storage.NewMemBucket()
	store, err := NewStore(ctx, bucket, nil)
	require.NoError(t, err)

	require.NoError(t, store.WriteCache(ctx, map[StoreKey][]byte{
		{Name: "a", Key: "k1"}: []byte("va"),
		{Name: "b", Key: "k2"}: []byte("vb"),
	}))

	reopened, err := NewStore(ctx, bucket, nil)
	require.NoError(t, err)
	require.True(t, reopened.HasCache("a"))
	require.True(t, reopened.HasCache("b"))
}

func TestStorePathLayout(t *testing.T) {
	t.Parallel()
	path := StorePath("/proj/node_modules/.farm", "farm", "ns", "mutable-modules", ModeDevelopment)
	require.Equal(t, "/proj/node_modules/.farm/0.0.1-farm/ns/development/mutable-modules", path)
}
