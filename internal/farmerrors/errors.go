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

// Package farmerrors implements the build's error taxonomy: a small set
// of discriminated error kinds — ResolveError, LoadError, TransformError,
// ParseError, JoinError, GenericError — each wrapping the failing
// module's identity and an optional underlying cause, with Unwrap
// support for errors.As/errors.Is, aggregated via go.uber.org/multierr
// rather than unwinding on the first failure.
package farmerrors

import "fmt"

// ResolveError reports that no plugin produced a resolution for src, or a
// resolve hook itself failed.
type ResolveError struct {
	Importer string // empty for an entry resolve
	Src      string
	Source   error
}

func (e *ResolveError) Error() string {
	if e.Importer == "" {
		return fmt.Sprintf("resolve %q: %s", e.Src, e.causeText())
	}
	return fmt.Sprintf("resolve %q from %q: %s", e.Src, e.Importer, e.causeText())
}

func (e *ResolveError) causeText() string {
	if e.Source != nil {
		return e.Source.Error()
	}
	return "no plugin resolved this specifier"
}

func (e *ResolveError) Unwrap() error { return e.Source }

// LoadError reports that no plugin produced content for resolvedPath, or a
// load hook itself failed.
type LoadError struct {
	ResolvedPath string
	Source       error
}

func (e *LoadError) Error() string {
	if e.Source != nil {
		return fmt.Sprintf("load %q: %s", e.ResolvedPath, e.Source)
	}
	return fmt.Sprintf("load %q: no plugin produced content", e.ResolvedPath)
}

func (e *LoadError) Unwrap() error { return e.Source }

// TransformError reports a transform hook failure for a module.
type TransformError struct {
	ModuleID string
	Plugin   string
	Msg      string
	Source   error
}

func (e *TransformError) Error() string {
	if e.Plugin != "" {
		return fmt.Sprintf("transform %q (plugin %q): %s", e.ModuleID, e.Plugin, e.Msg)
	}
	return fmt.Sprintf("transform %q: %s", e.ModuleID, e.Msg)
}

func (e *TransformError) Unwrap() error { return e.Source }

// ParseError reports a parse hook failure, or that no plugin could parse
// the module's type.
type ParseError struct {
	ModuleID string
	Msg      string
	Source   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.ModuleID, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Source }

// JoinError wraps a spawned build task that panicked or was cancelled
// before it could report a normal error.
type JoinError struct {
	ModuleID string
	Panic    any
	Source   error
}

func (e *JoinError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("task for %q panicked: %v", e.ModuleID, e.Panic)
	}
	return fmt.Sprintf("task for %q failed to join: %s", e.ModuleID, e.Source)
}

func (e *JoinError) Unwrap() error { return e.Source }

// GenericError is a catch-all for failures that don't fit another kind.
type GenericError struct {
	Msg    string
	Source error
}

func (e *GenericError) Error() string {
	if e.Source != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Source)
	}
	return e.Msg
}

func (e *GenericError) Unwrap() error { return e.Source }
