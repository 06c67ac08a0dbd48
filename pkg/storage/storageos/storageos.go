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

// Package storageos implements storage.ReadWriteBucket rooted at a local
// filesystem directory, for the module cache's flat key/blob layout:
// every key is a single regular file directly under the bucket root
// (sha256 digests and the "farm-cache.json" / "immutable-modules.json"
// manifest names), never a nested path.
package storageos

import (
	"context"
	"os"
	"path/filepath"

	"github.com/farmfe/farm-core-go/pkg/storage"
)

type bucket struct {
	rootPath string
}

// NewBucket returns a ReadWriteBucket rooted at rootPath, creating
// rootPath (and any missing parents) if it does not yet exist — the cache
// store directory is versioned and namespaced, so its parents
// routinely do not exist on a clean checkout.
func NewBucket(rootPath string) (storage.ReadWriteBucket, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, err
	}
	return &bucket{rootPath: filepath.Clean(rootPath)}, nil
}

func (b *bucket) path(key string) string {
	return filepath.Join(b.rootPath, filepath.Base(key))
}

func (b *bucket) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewErrNotExist(key)
		}
		return nil, err
	}
	return data, nil
}

func (b *bucket) Has(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *bucket) Put(_ context.Context, key string, contents []byte) error {
	if err := os.MkdirAll(b.rootPath, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.rootPath, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, b.path(key))
}

func (b *bucket) Remove(_ context.Context, key string) error {
	err := os.Remove(b.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
