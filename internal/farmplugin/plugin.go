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

package farmplugin

import (
	"context"

	"github.com/farmfe/farm-core-go/internal/farmmodule"
)

// DefaultPriority is the priority assigned to a plugin that doesn't
// override it.
const DefaultPriority = 100

// Plugin is the contract every build plugin implements. Every
// hook is optional: a plugin that doesn't participate in a given hook
// returns (zero value, false, nil) for first-wins/chain hooks, or nil for
// serial hooks it doesn't care about. Plugins must be safe to call
// concurrently from multiple goroutines — the driver makes no ordering
// guarantee across distinct ModuleIds.
type Plugin interface {
	Name() string
	Priority() int

	Config(ctx context.Context, config any) error

	// Resolve returns (result, true, nil) if this plugin claims source,
	// (zero, false, nil) if it declines, or (zero, false, err) on failure.
	Resolve(ctx context.Context, param *ResolveHookParam) (ResolveHookResult, bool, error)
	Load(ctx context.Context, param *LoadHookParam) (LoadHookResult, bool, error)
	Transform(ctx context.Context, param *TransformHookParam) (TransformHookResult, bool, error)
	Parse(ctx context.Context, param *ParseHookParam) (farmmodule.ModuleMetaData, bool, error)
	ProcessModule(ctx context.Context, module *farmmodule.Module) error
}

// BasePlugin embeds into a concrete plugin to supply every hook's
// "not mine" default, so a plugin only needs to implement the hooks it
// cares about, avoiding repeated no-op stubs across plugins.
type BasePlugin struct{}

func (BasePlugin) Config(context.Context, any) error { return nil }

func (BasePlugin) Resolve(context.Context, *ResolveHookParam) (ResolveHookResult, bool, error) {
	return ResolveHookResult{}, false, nil
}

func (BasePlugin) Load(context.Context, *LoadHookParam) (LoadHookResult, bool, error) {
	return LoadHookResult{}, false, nil
}

func (BasePlugin) Transform(context.Context, *TransformHookParam) (TransformHookResult, bool, error) {
	return TransformHookResult{}, false, nil
}

func (BasePlugin) Parse(context.Context, *ParseHookParam) (farmmodule.ModuleMetaData, bool, error) {
	return farmmodule.ModuleMetaData{}, false, nil
}

func (BasePlugin) ProcessModule(context.Context, *farmmodule.Module) error { return nil }
