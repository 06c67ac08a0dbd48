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

package farmbuild

import (
	"os"

	"github.com/farmfe/farm-core-go/internal/farmcache"
)

// FileSystem abstracts the disk probes a cache-validity check needs, so
// tests can exercise hash/timestamp invalidation without touching disk.
type FileSystem interface {
	// Exists reports whether path is present on disk.
	Exists(path string) bool
	// ModTimeNanos returns path's modification time in nanoseconds since
	// the Unix epoch.
	ModTimeNanos(path string) (int64, bool)
	// ContentHash returns a content hash for path, computed the same way
	// as Module.ContentHash.
	ContentHash(path string) (string, bool)
}

// OSFileSystem implements FileSystem against the local filesystem.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) ModTimeNanos(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.ModTime().UnixNano(), true
}

func (OSFileSystem) ContentHash(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return farmcache.HashKey(string(data))[:32], true
}

// Validator decides whether a cached module is reusable: it is reusable
// iff its own content is unchanged by whichever mode is enabled
// (hash preferred over timestamp when both are) and none of its watch
// dependencies have changed.
type Validator struct {
	fs               FileSystem
	hashEnabled      bool
	timestampEnabled bool
}

// NewValidator constructs a Validator. At least one of hashEnabled/
// timestampEnabled should be true or every lookup is treated as missing.
func NewValidator(fs FileSystem, hashEnabled, timestampEnabled bool) *Validator {
	return &Validator{fs: fs, hashEnabled: hashEnabled, timestampEnabled: timestampEnabled}
}

// Valid reports whether the cached entry for resolvedPath, recorded with
// contentHash and lastUpdateTimestamp, remains usable, given its own
// recorded watchDeps.
func (v *Validator) Valid(resolvedPath string, contentHash string, lastUpdateTimestamp int64, watchDeps map[string]watchDepRecord) bool {
	if !v.fs.Exists(resolvedPath) {
		return false
	}

	if v.hashEnabled {
		current, ok := v.fs.ContentHash(resolvedPath)
		if !ok || current != contentHash {
			return false
		}
	} else if v.timestampEnabled {
		current, ok := v.fs.ModTimeNanos(resolvedPath)
		if !ok || current != lastUpdateTimestamp {
			return false
		}
	} else {
		return false
	}

	for path, rec := range watchDeps {
		if !v.fs.Exists(path) {
			return false
		}
		if v.hashEnabled {
			current, ok := v.fs.ContentHash(path)
			if !ok || current != rec.hash {
				return false
			}
		} else {
			current, ok := v.fs.ModTimeNanos(path)
			if !ok || current != rec.timestamp {
				return false
			}
		}
	}
	return true
}

type watchDepRecord struct {
	timestamp int64
	hash      string
}
