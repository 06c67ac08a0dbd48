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

// Package thread provides a bounded-concurrency fan-out helper for
// spawning parallel work without unbounded goroutine growth.
package thread

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency bounds Parallelize when callers pass 0.
const DefaultMaxConcurrency = 32

// Parallelize runs every job concurrently, bounded to maxConcurrency
// in-flight at once, and returns the first error encountered (if any),
// cancelling ctx for the remaining jobs. If ctx is already done, no job
// runs and ctx.Err() is returned immediately.
//
// The graph builder (farmbuild) does not use Parallelize: its fan-out
// does not abort sibling dependency work on a single failure, and it
// bounds concurrency with its own semaphore channel instead.
func Parallelize(ctx context.Context, jobs []func(context.Context) error, maxConcurrency int) error {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(maxConcurrency))

	for _, job := range jobs {
		job := job
		if err := sem.Acquire(groupCtx, 1); err != nil {
			if waitErr := group.Wait(); waitErr != nil {
				return waitErr
			}
			return err
		}
		group.Go(func() error {
			defer sem.Release(1)
			return job(groupCtx)
		})
	}

	return group.Wait()
}
