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

// Package farmid defines the canonical module identity (ModuleId) and the
// ResolveKind classification of how a module came to be imported. Both
// are plain comparable structs, so a ModuleId is directly usable as a
// map key — the sole key into the module graph and caches.
package farmid

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ModuleId is the canonical identity of a module: a relative (or absolute,
// or virtual:-prefixed) path plus an optional canonicalized query string.
// Two ModuleIds are equal iff both fields match, and ModuleId is
// comparable so it can key a Go map directly.
type ModuleId struct {
	RelativePath string
	QueryString  string
}

// New constructs a ModuleId from an already-resolved path and a raw query
// param list, canonicalizing the query with StringifyQuery.
func New(relativePath string, query []QueryParam) ModuleId {
	return ModuleId{RelativePath: relativePath, QueryString: StringifyQuery(query)}
}

// NewRaw constructs a ModuleId from a path and an already-canonicalized
// query string (used when round-tripping from cache or String()).
func NewRaw(relativePath, queryString string) ModuleId {
	return ModuleId{RelativePath: relativePath, QueryString: queryString}
}

// String renders the ModuleId the way it appears in source and in
// diagnostics: "<path><query>", e.g. "src/index.css?raw".
func (id ModuleId) String() string {
	return id.RelativePath + id.QueryString
}

// FileModuleId returns the ModuleId sharing only this id's relative path
// and no query — the bucket key of ModuleGraph.FileModuleIds, so
// foo.css and foo.css?raw share a bucket.
func (id ModuleId) FileModuleId() ModuleId {
	return ModuleId{RelativePath: id.RelativePath}
}

// Less implements a lexicographic ordering on (RelativePath,
// QueryString), used to sort entries for a deterministic topo-sort
// traversal order.
func (id ModuleId) Less(other ModuleId) bool {
	if id.RelativePath != other.RelativePath {
		return id.RelativePath < other.RelativePath
	}
	return id.QueryString < other.QueryString
}

// SortModuleIds sorts ids in place by their canonical (RelativePath,
// QueryString) ordering.
func SortModuleIds(ids []ModuleId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// NewVirtual mints a ModuleId for a synthetic module with no backing file,
// e.g. one produced by a plugin's resolve hook with no natural path. The
// "virtual:" prefix marks it as having no backing file; a caller-omitted
// name is filled with a generated identifier so two anonymous virtual
// modules from the same plugin never collide.
func NewVirtual(name string, query []QueryParam) ModuleId {
	if name == "" {
		name = uuid.NewString()
	}
	return New("virtual:"+name, query)
}

// QueryParam is a single k=v pair of an (ordered) resolved query string.
type QueryParam struct {
	Key   string
	Value string
}

// StringifyQuery renders an ordered query param list: "" if empty, else
// "?k1" | "?k1=v1&k2" | …; an entry with empty value renders as just
// the key.
func StringifyQuery(query []QueryParam) string {
	if len(query) == 0 {
		return ""
	}
	parts := make([]string, 0, len(query))
	for _, kv := range query {
		if kv.Value == "" {
			parts = append(parts, kv.Key)
		} else {
			parts = append(parts, kv.Key+"="+kv.Value)
		}
	}
	return "?" + strings.Join(parts, "&")
}

// ParseQuery parses a canonicalized query string (as produced by
// StringifyQuery, without its leading "?") back into an ordered param
// list. Used when round-tripping a resolved path's raw query portion.
func ParseQuery(raw string) []QueryParam {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return nil
	}
	segments := strings.Split(raw, "&")
	params := make([]QueryParam, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if k, v, ok := strings.Cut(seg, "="); ok {
			params = append(params, QueryParam{Key: k, Value: v})
		} else {
			params = append(params, QueryParam{Key: seg})
		}
	}
	return params
}

// ResolveKindTag discriminates the ResolveKind variant. Entry and Custom
// carry a payload (Name), so the Go encoding is a tag plus an optional
// Name field rather than a bare enum.
type ResolveKindTag int

const (
	// KindImport is the default ResolveKind, a static `import` (CSS
	// `@import` is KindCssAtImport).
	KindImport ResolveKindTag = iota
	KindEntry
	KindExportFrom
	KindDynamicImport
	KindRequire
	KindCssAtImport
	KindCssURL
	KindScriptSrc
	KindLinkHref
	KindHmrUpdate
	KindCustom
)

// ResolveKind classifies the edge causing a module to be pulled in.
type ResolveKind struct {
	Tag  ResolveKindTag
	Name string // populated for KindEntry and KindCustom
}

// Import is the zero-value default ResolveKind.
var Import = ResolveKind{Tag: KindImport}

// Entry builds a ResolveKind for an entry point named name.
func Entry(name string) ResolveKind { return ResolveKind{Tag: KindEntry, Name: name} }

// Custom builds a ResolveKind for a plugin-defined edge classification.
func Custom(name string) ResolveKind { return ResolveKind{Tag: KindCustom, Name: name} }

var kindNames = map[ResolveKindTag]string{
	KindImport:        "Import",
	KindEntry:         "Entry",
	KindExportFrom:    "ExportFrom",
	KindDynamicImport: "DynamicImport",
	KindRequire:       "Require",
	KindCssAtImport:   "CssAtImport",
	KindCssURL:        "CssUrl",
	KindScriptSrc:     "ScriptSrc",
	KindLinkHref:      "LinkHref",
	KindHmrUpdate:     "HmrUpdate",
	KindCustom:        "Custom",
}

// String renders the ResolveKind the way it is surfaced in records and
// error messages — just the variant name for nullary variants, and
// "Entry(name)"/"Custom(name)" for the carrying ones.
func (k ResolveKind) String() string {
	name, ok := kindNames[k.Tag]
	if !ok {
		return "Unknown"
	}
	if k.Tag == KindEntry || k.Tag == KindCustom {
		return fmt.Sprintf("%s(%s)", name, k.Name)
	}
	return name
}

// IsDynamic reports whether this particular kind, taken alone,
// constitutes a dynamic import. An edge's own dynamism requires every
// item on it to be dynamic; this only classifies one kind.
func (k ResolveKind) IsDynamic() bool {
	return k.Tag == KindDynamicImport
}
