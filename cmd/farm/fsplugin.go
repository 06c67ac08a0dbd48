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

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/farmfe/farm-core-go/internal/farmmodule"
	"github.com/farmfe/farm-core-go/internal/farmplugin"
)

// fsPlugin is the minimal resolve/load/parse plugin this command wires in
// so a "farm build" run has something to drive the graph builder with. A
// real alias/node_modules-walking resolver and a real syntactic analyzer
// are both external collaborators this module leaves to the caller —
// fsPlugin only walks plain relative paths on disk and tags each
// module's parsed form as opaque custom meta.
type fsPlugin struct {
	farmplugin.BasePlugin
	root string
}

func newFsPlugin(root string) *fsPlugin { return &fsPlugin{root: root} }

func (p *fsPlugin) Name() string  { return "fs" }
func (p *fsPlugin) Priority() int { return farmplugin.DefaultPriority }

func (p *fsPlugin) Resolve(_ context.Context, param *farmplugin.ResolveHookParam) (farmplugin.ResolveHookResult, bool, error) {
	if strings.HasPrefix(param.Source, "http://") || strings.HasPrefix(param.Source, "https://") {
		return farmplugin.ResolveHookResult{ResolvedPath: param.Source, External: true}, true, nil
	}

	base := p.root
	if param.Importer != nil {
		base = filepath.Join(p.root, filepath.Dir(param.Importer.RelativePath))
	}
	abs := filepath.Clean(filepath.Join(base, param.Source))
	rel, err := filepath.Rel(p.root, abs)
	if err != nil {
		return farmplugin.ResolveHookResult{}, false, err
	}
	if _, err := os.Stat(abs); err != nil {
		return farmplugin.ResolveHookResult{}, false, nil
	}
	return farmplugin.ResolveHookResult{ResolvedPath: filepath.ToSlash(rel)}, true, nil
}

func (p *fsPlugin) Load(_ context.Context, param *farmplugin.LoadHookParam) (farmplugin.LoadHookResult, bool, error) {
	data, err := os.ReadFile(filepath.Join(p.root, param.ResolvedPath))
	if err != nil {
		return farmplugin.LoadHookResult{}, false, err
	}
	return farmplugin.LoadHookResult{Content: string(data), ModuleType: moduleTypeTag(param.ResolvedPath)}, true, nil
}

func (p *fsPlugin) Parse(_ context.Context, param *farmplugin.ParseHookParam) (farmmodule.ModuleMetaData, bool, error) {
	return farmmodule.ModuleMetaData{
		Kind:   farmmodule.MetaCustom,
		Custom: &farmmodule.CustomMeta{TypeTag: param.ModuleType, Payload: []byte(param.Content)},
	}, true, nil
}

func moduleTypeTag(path string) string {
	switch filepath.Ext(path) {
	case ".js":
		return "js"
	case ".jsx":
		return "jsx"
	case ".ts":
		return "ts"
	case ".tsx":
		return "tsx"
	case ".css":
		return "css"
	case ".html":
		return "html"
	default:
		return "asset"
	}
}
