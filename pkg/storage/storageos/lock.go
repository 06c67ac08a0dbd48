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

package storageos

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryInterval = 50 * time.Millisecond

// AcquireLock takes an exclusive, advisory file lock on a ".lock" file
// inside rootPath, so two build processes sharing one cache directory
// never interleave writes to the same manifest. Callers must Unlock the
// returned handle when the cache store is closed.
func AcquireLock(ctx context.Context, rootPath string) (*flock.Flock, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(rootPath, ".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock at %s: %w", rootPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("cache directory %s is locked by another process", rootPath)
	}
	return lock, nil
}
