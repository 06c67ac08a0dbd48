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

package farmbuild

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/farmfe/farm-core-go/internal/farmcache"
	"github.com/farmfe/farm-core-go/internal/farmerrors"
	"github.com/farmfe/farm-core-go/internal/farmid"
	"github.com/farmfe/farm-core-go/internal/farmmodule"
	"github.com/farmfe/farm-core-go/internal/farmplugin"
)

// buildFresh runs the load/transform/parse/process_module pipeline for a
// Success-classified module and returns its dependency descriptors, ready
// for fanOut. ok is false iff a pipeline stage failed — the caller has
// already had the corresponding error reported through sendErr.
func (b *GraphBuilder) buildFresh(
	ctx context.Context,
	moduleID farmid.ModuleId,
	resolveResult farmplugin.ResolveHookResult,
	resolveParam farmplugin.ResolveHookParam,
) (farmmodule.Module, []DependencyDescriptor, bool) {
	if resolveResult.External {
		module := farmmodule.Module{
			Id:         moduleID,
			External:   true,
			ModuleType: farmmodule.ModuleType{Tag: farmmodule.ModuleTypeCustom, Name: "__farm_external"},
		}
		b.graph.AddModule(module)
		return module, nil, true
	}

	loadParam := farmplugin.LoadHookParam{
		ModuleId: moduleID, ResolvedPath: resolveResult.ResolvedPath,
		Query: resolveResult.Query, Meta: resolveResult.Meta,
	}
	loadResult, ok, err := b.driver.Load(ctx, &loadParam)
	if err != nil {
		b.sendErr(&farmerrors.LoadError{ResolvedPath: resolveResult.ResolvedPath, Source: err})
		return farmmodule.Module{}, nil, false
	}
	if !ok {
		b.sendErr(&farmerrors.LoadError{ResolvedPath: resolveResult.ResolvedPath})
		return farmmodule.Module{}, nil, false
	}

	var initialChain []string
	if loadResult.SourceMap != "" {
		initialChain = []string{loadResult.SourceMap}
	}
	transformParam := farmplugin.TransformHookParam{
		ModuleId: moduleID, Content: loadResult.Content, ModuleType: loadResult.ModuleType,
		ResolvedPath: resolveResult.ResolvedPath, Query: resolveResult.Query, Meta: resolveResult.Meta,
		SourceMapChain: initialChain,
	}
	transformed, err := b.driver.Transform(ctx, transformParam)
	if err != nil {
		b.sendErr(&farmerrors.TransformError{ModuleID: moduleID.String(), Msg: err.Error(), Source: err})
		return farmmodule.Module{}, nil, false
	}

	parseParam := farmplugin.ParseHookParam{
		ModuleId: moduleID, ResolvedPath: resolveResult.ResolvedPath,
		Query: resolveResult.Query, ModuleType: transformed.ModuleType, Content: transformed.Content,
	}
	meta, ok, err := b.driver.Parse(ctx, &parseParam)
	if err != nil {
		b.sendErr(&farmerrors.ParseError{ModuleID: moduleID.String(), Msg: err.Error(), Source: err})
		return farmmodule.Module{}, nil, false
	}
	if !ok {
		b.sendErr(&farmerrors.ParseError{ModuleID: moduleID.String(), Msg: fmt.Sprintf("no plugin could parse module type %q", transformed.ModuleType)})
		return farmmodule.Module{}, nil, false
	}

	immutable := b.immutablePredicate != nil && b.immutablePredicate(resolveResult.ResolvedPath)
	var packageName, packageVersion string
	if immutable {
		packageName, packageVersion = PackageNameVersion(resolveResult.ResolvedPath, resolveResult.Meta)
	}

	chain := make([]farmmodule.SharedContent, len(transformed.SourceMapChain))
	for i, s := range transformed.SourceMapChain {
		chain[i] = farmmodule.NewSharedContent(s)
	}

	module := farmmodule.Module{
		Id:                  moduleID,
		ModuleType:          moduleTypeFromString(transformed.ModuleType),
		Meta:                meta,
		SideEffects:         resolveResult.SideEffects,
		SourceMapChain:      chain,
		Immutable:           immutable,
		Content:             farmmodule.NewSharedContent(transformed.Content),
		Size:                len(transformed.Content),
		ContentHash:         farmcache.HashKey(transformed.Content)[:32],
		LastUpdateTimestamp: time.Now().UnixNano(),
		PackageName:         packageName,
		PackageVersion:      packageVersion,
	}

	if err := b.driver.ProcessModule(ctx, &module); err != nil {
		b.sendErr(&farmerrors.GenericError{Msg: fmt.Sprintf("process_module %q", moduleID), Source: err})
		return farmmodule.Module{}, nil, false
	}

	b.graph.AddModule(module)

	deps, err := b.analyzeDeps(ctx, &module, meta)
	if err != nil {
		b.sendErr(&farmerrors.GenericError{Msg: fmt.Sprintf("analyze_deps %q", moduleID), Source: err})
		return module, nil, true
	}

	if b.cache != nil {
		b.cache.SetCache(moduleID, farmcache.CachedModule{Module: module})
	}

	return module, deps, true
}

func moduleTypeFromString(s string) farmmodule.ModuleType {
	switch s {
	case "js":
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeJs}
	case "jsx":
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeJsx}
	case "ts":
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeTs}
	case "tsx":
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeTsx}
	case "css":
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeCss}
	case "html":
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeHTML}
	case "asset":
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeAsset}
	case "runtime":
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeRuntime}
	case "":
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeCustom, Name: "__farm_unknown"}
	default:
		return farmmodule.ModuleType{Tag: farmmodule.ModuleTypeCustom, Name: s}
	}
}

// DefaultImmutablePredicate treats a module resolved from inside a
// node_modules segment as immutable — installed dependencies rather than
// user source.
func DefaultImmutablePredicate(resolvedPath string) bool {
	return strings.Contains(resolvedPath, "node_modules/")
}

// PackageNameVersion extracts a package name (scoped packages keep their
// @scope/name form) from a node_modules-relative path, and an optional
// version hint from a "farmPackageVersion" resolve meta entry — the
// concrete version is normally sourced from the package's manifest file,
// which is outside this module's scope.
func PackageNameVersion(resolvedPath string, meta map[string]string) (name, version string) {
	const marker = "node_modules/"
	idx := strings.LastIndex(resolvedPath, marker)
	if idx < 0 {
		return "", ""
	}
	rest := resolvedPath[idx+len(marker):]
	segments := strings.SplitN(rest, "/", 3)
	if len(segments) == 0 || segments[0] == "" {
		return "", ""
	}
	if strings.HasPrefix(segments[0], "@") && len(segments) > 1 {
		name = segments[0] + "/" + segments[1]
	} else {
		name = segments[0]
	}
	if meta != nil {
		version = meta["farmPackageVersion"]
	}
	return name, version
}
