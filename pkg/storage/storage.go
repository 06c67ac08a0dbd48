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

// Package storage implements a small filesystem abstraction used by the
// module cache's low-level store. It exists so the cache store can be
// exercised against an in-memory bucket in tests without touching disk,
// and so a single blob-write/manifest-read code path works for both.
//
// All paths are single flat keys (a sha256 hex digest, or a manifest file
// name); buckets here do not model directory hierarchies beyond what the
// OS implementation needs to create its root directory.
package storage

import (
	"context"
	"errors"
)

// errNotExist is wrapped by NewErrNotExist so callers can test with
// IsNotExist regardless of which bucket implementation raised it.
var errNotExist = errors.New("does not exist")

// NotExistError is returned for a missing key. It wraps errNotExist so
// errors.Is(err, errNotExist)-style checks via IsNotExist succeed, while
// still carrying the offending key for diagnostics.
type NotExistError struct {
	Key string
}

func (e *NotExistError) Error() string { return e.Key + ": " + errNotExist.Error() }

func (e *NotExistError) Unwrap() error { return errNotExist }

// NewErrNotExist returns an error for a key not existing in a bucket.
func NewErrNotExist(key string) error { return &NotExistError{Key: key} }

// IsNotExist reports whether err was produced by NewErrNotExist.
func IsNotExist(err error) bool {
	return errors.Is(err, errNotExist)
}

// ReadBucket is a read-only flat key/value blob store.
type ReadBucket interface {
	// Get returns the full contents stored at key.
	//
	// Returns an error satisfying IsNotExist if key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Has reports whether key exists, without reading its contents.
	Has(ctx context.Context, key string) (bool, error)
}

// WriteBucket is a write-only flat key/value blob store.
type WriteBucket interface {
	// Put writes contents at key, replacing any prior value.
	Put(ctx context.Context, key string, contents []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// ReadWriteBucket combines ReadBucket and WriteBucket.
type ReadWriteBucket interface {
	ReadBucket
	WriteBucket
}

// ReadPath reads the full contents of key from b, returning a not-exist
// error untouched so callers can branch on IsNotExist.
func ReadPath(ctx context.Context, b ReadBucket, key string) ([]byte, error) {
	return b.Get(ctx, key)
}

// memBucket is an in-memory ReadWriteBucket, primarily for tests.
type memBucket struct {
	data map[string][]byte
}

// NewMemBucket constructs an empty in-memory bucket.
func NewMemBucket() ReadWriteBucket {
	return &memBucket{data: make(map[string][]byte)}
}

func (m *memBucket) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, NewErrNotExist(key)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *memBucket) Has(_ context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *memBucket) Put(_ context.Context, key string, contents []byte) error {
	cp := make([]byte, len(contents))
	copy(cp, contents)
	m.data[key] = cp
	return nil
}

func (m *memBucket) Remove(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// CopyAll copies every key from src to dst. src must be able to list its
// keys: the in-memory bucket can, the storageos bucket cannot.
func CopyAll(ctx context.Context, src interface {
	Keys() []string
	ReadBucket
}, dst WriteBucket) error {
	for _, key := range src.Keys() {
		contents, err := src.Get(ctx, key)
		if err != nil {
			return err
		}
		if err := dst.Put(ctx, key, contents); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns every key currently stored, for diagnostics and tests.
func (m *memBucket) Keys() []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
