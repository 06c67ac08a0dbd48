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

// Package farmplugin implements the plugin contract and hook dispatch:
// an ordered pipeline of resolve/load/transform/parse/process hooks with
// first-wins, chain, and serial dispatch disciplines, one plain Go
// method per hook rather than a single generic dispatcher (the per-hook
// record shapes differ enough that a shared generic would obscure more
// than it would save).
package farmplugin

import "github.com/farmfe/farm-core-go/internal/farmid"

// ResolveHookParam is the input to a resolve hook.
type ResolveHookParam struct {
	Source   string
	Importer *farmid.ModuleId // nil for an entry resolve
	Kind     farmid.ResolveKind
}

// ResolveHookResult is the output of a resolve hook, present iff the
// plugin claims the specifier.
type ResolveHookResult struct {
	ResolvedPath string
	External     bool
	SideEffects  bool
	Query        []farmid.QueryParam
	Meta         map[string]string
}

// LoadHookParam is the input to a load hook.
type LoadHookParam struct {
	ModuleId     farmid.ModuleId
	ResolvedPath string
	Query        []farmid.QueryParam
	Meta         map[string]string
}

// LoadHookResult is the output of a load hook.
type LoadHookResult struct {
	Content    string
	ModuleType string
	SourceMap  string // empty if the loader produced none
}

// TransformHookParam is the input threaded through the transform chain;
// each plugin in turn sees the previous plugin's (possibly replaced)
// content, module type, and source map chain.
type TransformHookParam struct {
	ModuleId       farmid.ModuleId
	Content        string
	ModuleType     string
	ResolvedPath   string
	Query          []farmid.QueryParam
	Meta           map[string]string
	SourceMapChain []string
}

// TransformHookResult is the output of one transform plugin.
type TransformHookResult struct {
	Content                 string
	ModuleType              string // empty means "unchanged"
	SourceMap               string // empty means "no new segment"
	IgnorePreviousSourceMap bool
}

// ParseHookParam is the input to a parse hook.
type ParseHookParam struct {
	ModuleId     farmid.ModuleId
	ResolvedPath string
	Query        []farmid.QueryParam
	ModuleType   string
	Content      string
}

// AnalyzeDepsHookResultEntry is one dependency discovered by analyzing a
// parsed module.
type AnalyzeDepsHookResultEntry struct {
	Source string
	Kind   farmid.ResolveKind
}
