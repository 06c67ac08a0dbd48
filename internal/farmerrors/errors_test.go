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

package farmerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestResolveErrorUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("ENOENT")
	err := &ResolveError{Importer: "src/a.ts", Src: "./b", Source: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "./b")
	require.Contains(t, err.Error(), "src/a.ts")
}

func TestResolveErrorWithoutSource(t *testing.T) {
	t.Parallel()
	err := &ResolveError{Src: "./missing"}
	require.Contains(t, err.Error(), "no plugin resolved")
}

func TestLoadErrorAs(t *testing.T) {
	t.Parallel()
	err := error(&LoadError{ResolvedPath: "/abs/a.ts", Source: errors.New("EACCES")})

	var target *LoadError
	require.True(t, errors.As(err, &target))
	require.Equal(t, "/abs/a.ts", target.ResolvedPath)
}

func TestJoinErrorPanicPath(t *testing.T) {
	t.Parallel()
	err := &JoinError{ModuleID: "src/a.ts", Panic: "boom"}
	require.Contains(t, err.Error(), "panicked")
	require.Contains(t, err.Error(), "boom")
}

func TestAggregateViaMultierr(t *testing.T) {
	t.Parallel()
	var agg error
	agg = multierr.Append(agg, &ResolveError{Src: "./a"})
	agg = multierr.Append(agg, &LoadError{ResolvedPath: "/b"})

	errs := multierr.Errors(agg)
	require.Len(t, errs, 2)

	var resolveErr *ResolveError
	require.True(t, errors.As(agg, &resolveErr))
}
