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

package thread

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func TestParallelizeWithImmediateCancellation(t *testing.T) {
	t.Parallel()

	t.Run("RegularRun", func(t *testing.T) {
		t.Parallel()
		const jobsToExecute = 10
		var executed atomic.Int64
		jobs := make([]func(context.Context) error, 0, jobsToExecute)
		for i := 0; i < jobsToExecute; i++ {
			jobs = append(jobs, func(context.Context) error {
				executed.Inc()
				return nil
			})
		}
		err := Parallelize(context.Background(), jobs, 0)
		assert.NoError(t, err)
		assert.Equal(t, int64(jobsToExecute), executed.Load(), "jobs executed")
	})

	t.Run("WithCtxCancellation", func(t *testing.T) {
		t.Parallel()
		var executed atomic.Int64
		var jobs []func(context.Context) error
		for i := 0; i < 10; i++ {
			jobs = append(jobs, func(context.Context) error {
				executed.Inc()
				return nil
			})
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Parallelize(ctx, jobs, 0)
		assert.Error(t, err)
		assert.Equal(t, int64(0), executed.Load(), "jobs executed")
	})
}

func TestParallelizeFirstErrorWins(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("boom")
	jobs := []func(context.Context) error{
		func(context.Context) error { return nil },
		func(context.Context) error { return sentinel },
		func(context.Context) error { return nil },
	}
	err := Parallelize(context.Background(), jobs, 2)
	assert.ErrorIs(t, err, sentinel)
}

func TestParallelizeBoundsConcurrency(t *testing.T) {
	t.Parallel()
	var inFlight, maxSeen atomic.Int64
	jobs := make([]func(context.Context) error, 0, 20)
	for i := 0; i < 20; i++ {
		jobs = append(jobs, func(context.Context) error {
			cur := inFlight.Inc()
			for {
				prev := maxSeen.Load()
				if cur <= prev || maxSeen.CAS(prev, cur) {
					break
				}
			}
			inFlight.Dec()
			return nil
		})
	}
	err := Parallelize(context.Background(), jobs, 4)
	assert.NoError(t, err)
	assert.LessOrEqual(t, maxSeen.Load(), int64(4))
}
