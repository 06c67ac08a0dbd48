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

// Package farmmodule implements the module data model, the module
// dependency graph, and the watch-dependency graph. Shared content is
// modeled with a small pointer-backed string wrapper; copies share one
// string and no reference count is kept.
package farmmodule

import (
	"encoding/json"

	"github.com/farmfe/farm-core-go/internal/farmid"
)

// ModuleType tags the concrete source kind of a module. Custom carries a
// plugin-defined name for module types the core does not itself know
// about.
type ModuleType struct {
	Tag  ModuleTypeTag
	Name string // populated only for ModuleTypeCustom
}

type ModuleTypeTag int

const (
	ModuleTypeJs ModuleTypeTag = iota
	ModuleTypeJsx
	ModuleTypeTs
	ModuleTypeTsx
	ModuleTypeCss
	ModuleTypeHTML
	ModuleTypeAsset
	ModuleTypeRuntime
	ModuleTypeCustom
)

func (t ModuleType) String() string {
	switch t.Tag {
	case ModuleTypeJs:
		return "Js"
	case ModuleTypeJsx:
		return "Jsx"
	case ModuleTypeTs:
		return "Ts"
	case ModuleTypeTsx:
		return "Tsx"
	case ModuleTypeCss:
		return "Css"
	case ModuleTypeHTML:
		return "Html"
	case ModuleTypeAsset:
		return "Asset"
	case ModuleTypeRuntime:
		return "Runtime"
	case ModuleTypeCustom:
		return "Custom(" + t.Name + ")"
	default:
		return "Unknown"
	}
}

// MetaKind discriminates the ModuleMetaData tagged variant.
type MetaKind int

const (
	MetaScript MetaKind = iota
	MetaCSS
	MetaHTML
	MetaCustom
)

// ScriptMeta is the parsed form for Js/Jsx/Ts/Tsx modules. Syntactic
// marks (e.g. "has side-effect annotations been analyzed") are reset by
// farmbuild's handleCachedModule on cache hits so a second build
// re-derives them from the (possibly plugin-mutated) AST rather than
// trusting stale flags.
type ScriptMeta struct {
	HasModuleMark  bool
	IsAnalyzed     bool
	TopLevelMarker string
}

// CSSMeta is the parsed form for Css modules.
type CSSMeta struct {
	HasModuleExport bool
}

// HTMLMeta is the parsed form for Html modules.
type HTMLMeta struct {
	HasInlineScript bool
}

// CustomMeta is a language-agnostic, round-trippable opaque blob for
// module types the core does not understand. Implementations may encode
// it with any self-describing serializer; here it is a raw byte payload
// plus a type tag string a plugin can downcast by — safe downcasting by
// variant tag rather than by runtime reflection.
type CustomMeta struct {
	TypeTag string
	Payload []byte
}

// ModuleMetaData is the tagged union of a module's parsed form. Exactly
// one of the typed fields is meaningful, selected by Kind.
type ModuleMetaData struct {
	Kind   MetaKind
	Script *ScriptMeta
	CSS    *CSSMeta
	HTML   *HTMLMeta
	Custom *CustomMeta
}

// SharedContent is immutable post-transform source text: content and
// source-map-chain elements are string blobs shared by pointer, with no
// reference count; the garbage collector reclaims them. A transform produces a
// fresh SharedContent; nothing ever mutates one in place, so a chain
// built from one build can be safely shared with a concurrently-running
// dependency task.
type SharedContent struct {
	text *string
}

// NewSharedContent wraps s for sharing.
func NewSharedContent(s string) SharedContent { return SharedContent{text: &s} }

// String returns the wrapped text. The zero SharedContent returns "".
func (c SharedContent) String() string {
	if c.text == nil {
		return ""
	}
	return *c.text
}

// MarshalJSON round-trips the wrapped text as a plain JSON string so a
// SharedContent survives the cache's serialize/deserialize cycle
// despite its backing field being
// unexported.
func (c SharedContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON is the counterpart of MarshalJSON.
func (c *SharedContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = NewSharedContent(s)
	return nil
}

// Module is a discrete, canonically-identified unit of source.
type Module struct {
	Id         farmid.ModuleId
	ModuleType ModuleType
	Meta       ModuleMetaData

	SideEffects bool
	// SourceMapChain is ordered oldest-first; each transform may append
	// a segment or, via IgnorePreviousSourceMap, clear the chain first.
	SourceMapChain []SharedContent

	External  bool
	Immutable bool

	ExecutionOrder int
	Size           int
	Content        SharedContent
	UsedExports    []string

	// LastUpdateTimestamp is nanoseconds since the Unix epoch.
	LastUpdateTimestamp int64
	// ContentHash is a 32-byte hex-encoded SHA-256 prefix.
	ContentHash string

	PackageName    string
	PackageVersion string
}

// NewDummy constructs the placeholder Module the builder inserts under
// the graph writer lock to reserve id before any async work on it begins.
func NewDummy(id farmid.ModuleId) Module {
	return Module{Id: id, ModuleType: ModuleType{Tag: ModuleTypeCustom, Name: "__farm_unknown"}}
}
