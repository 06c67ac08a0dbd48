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

// Package farmbuild assembles the module graph: for every entry and every
// discovered dependency it resolves, classifies (Built/Cached/Success),
// builds (load, transform, parse, process_module), analyzes the result's
// dependencies, and fans those out the same way, committing every module
// and edge under the graph's single writer lock. Unlike
// pkg/thread.Parallelize, a single module failing to build does not cancel
// its siblings — every spawned task drains to completion and every error
// is collected into a bounded channel instead.
package farmbuild

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/farmfe/farm-core-go/internal/farmcache"
	"github.com/farmfe/farm-core-go/internal/farmerrors"
	"github.com/farmfe/farm-core-go/internal/farmid"
	"github.com/farmfe/farm-core-go/internal/farmmodule"
	"github.com/farmfe/farm-core-go/internal/farmplugin"
)

// DependencyDescriptor is one dependency discovered by analyzing a built
// module: the raw (source, kind) entry, plus — when the parent module is
// immutable — the already-resolved id the dependency is known to reuse
// without a fresh resolve call.
type DependencyDescriptor struct {
	Entry            farmplugin.AnalyzeDepsHookResultEntry
	CachedDependency *farmid.ModuleId
}

// AnalyzeDepsFunc is the per-module-type dependency analysis step.
// Concrete syntactic analysis (parsing a specific language's import
// statements) is left to the caller, which supplies the
// language-specific implementation.
type AnalyzeDepsFunc func(ctx context.Context, module *farmmodule.Module, meta farmmodule.ModuleMetaData) ([]DependencyDescriptor, error)

// NoopAnalyzeDeps reports no dependencies, usable for tests and for module
// types known to never import anything (e.g. a terminal asset).
func NoopAnalyzeDeps(context.Context, *farmmodule.Module, farmmodule.ModuleMetaData) ([]DependencyDescriptor, error) {
	return nil, nil
}

// DefaultErrorChannelCapacity bounds the builder's error sink so up to
// 1024 in-flight build errors can queue before a producer blocks.
const DefaultErrorChannelCapacity = 1024

// DefaultMaxConcurrency bounds the number of build tasks in flight at once.
const DefaultMaxConcurrency = 32

// Config tunes a GraphBuilder.
type Config struct {
	MaxConcurrency       int
	ErrorChannelCapacity int
}

// GraphBuilder builds a farmmodule.ModuleGraph by concurrently resolving,
// building, and fanning out from a set of entries.
type GraphBuilder struct {
	graph       *farmmodule.ModuleGraph
	watch       *farmmodule.WatchGraph
	driver      *farmplugin.Driver
	cache       *farmcache.Manager // nil disables the cache path entirely
	validator   *Validator         // nil treats every cache hit as stale
	analyzeDeps AnalyzeDepsFunc
	logger      *zap.Logger

	immutablePredicate func(resolvedPath string) bool

	sem  chan struct{}
	errs chan error
	wg   sync.WaitGroup

	dummyMu sync.Mutex
}

// SetImmutablePredicate overrides the rule deciding whether a freshly
// built module is immutable (default DefaultImmutablePredicate).
func (b *GraphBuilder) SetImmutablePredicate(fn func(resolvedPath string) bool) {
	b.immutablePredicate = fn
}

// New constructs a GraphBuilder. cache and validator may both be nil to
// disable caching entirely (every module is built fresh).
func New(
	graph *farmmodule.ModuleGraph,
	watch *farmmodule.WatchGraph,
	driver *farmplugin.Driver,
	cache *farmcache.Manager,
	validator *Validator,
	analyzeDeps AnalyzeDepsFunc,
	logger *zap.Logger,
	cfg Config,
) *GraphBuilder {
	if analyzeDeps == nil {
		analyzeDeps = NoopAnalyzeDeps
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	errCap := cfg.ErrorChannelCapacity
	if errCap <= 0 {
		errCap = DefaultErrorChannelCapacity
	}
	return &GraphBuilder{
		graph:              graph,
		watch:              watch,
		driver:             driver,
		cache:              cache,
		validator:          validator,
		analyzeDeps:        analyzeDeps,
		logger:             logger,
		immutablePredicate: DefaultImmutablePredicate,
		sem:                make(chan struct{}, maxConcurrency),
		errs:               make(chan error, errCap),
	}
}

// Build resolves every named entry concurrently, recursively builds the
// module graph reachable from them, and returns the aggregate of every
// error encountered (nil if none). It blocks until every spawned task has
// drained, regardless of whether earlier tasks failed.
func (b *GraphBuilder) Build(ctx context.Context, entries map[string]string) error {
	for name, source := range entries {
		name, source := name, source
		b.spawn(func() {
			b.buildModuleGraph(ctx, farmplugin.ResolveHookParam{Source: source, Kind: farmid.Entry(name)}, nil, 0, name)
		})
	}
	b.wg.Wait()
	close(b.errs)

	var agg error
	for err := range b.errs {
		agg = multierr.Append(agg, err)
	}
	return agg
}

func (b *GraphBuilder) spawn(fn func()) {
	b.wg.Add(1)
	b.sem <- struct{}{}
	go func() {
		defer b.wg.Done()
		defer func() { <-b.sem }()
		defer func() {
			if r := recover(); r != nil {
				b.errs <- &farmerrors.JoinError{Panic: r}
			}
		}()
		fn()
	}()
}

func (b *GraphBuilder) sendErr(err error) {
	if err == nil {
		return
	}
	b.errs <- err
}

type classification int

const (
	classificationBuilt classification = iota
	classificationCached
	classificationSuccess
)

// buildModuleGraph runs the algorithm for a single (importer,
// specifier) pair: resolve, classify, and — on a fresh build — fan the
// result's dependencies back out through itself.
//
// entryName is non-empty only for a top-level entry resolve, so the new
// module's id can be registered in ModuleGraph.Entries.
func (b *GraphBuilder) buildModuleGraph(
	ctx context.Context,
	resolveParam farmplugin.ResolveHookParam,
	cachedDependency *farmid.ModuleId,
	order int,
	entryName string,
) {
	moduleID, resolveResult, class, err := b.resolve(ctx, &resolveParam, cachedDependency)
	if err != nil {
		b.sendErr(err)
		return
	}

	if entryName != "" {
		b.graph.SetEntry(moduleID, entryName)
	}

	importerID := resolveParam.Importer

	switch class {
	case classificationBuilt:
		b.commitEdge(importerID, moduleID, resolveParam.Source, resolveParam.Kind, order)
		return
	case classificationCached:
		cached, err := b.cache.GetCache(ctx, moduleID)
		if err != nil {
			b.sendErr(&farmerrors.GenericError{Msg: "cached module vanished between validity check and retrieval", Source: err})
			return
		}
		module := handleCachedModule(cached.Module)
		b.graph.AddModule(module)
		b.watch.SeedFromCached(moduleID, cached.WatchDependencies)
		b.commitEdge(importerID, moduleID, resolveParam.Source, resolveParam.Kind, order)
		b.fanOutCachedDeps(ctx, module, cached.Dependencies)
		return
	default: // classificationSuccess
		module, deps, ok := b.buildFresh(ctx, moduleID, resolveResult, resolveParam)
		b.commitEdge(importerID, moduleID, resolveParam.Source, resolveParam.Kind, order)
		if !ok {
			return
		}
		b.fanOut(ctx, module, deps)
	}
}

// handleCachedModule resets the syntactic marks a cache hit must not trust
// blindly: IsAnalyzed is cleared so a
// later step re-derives it from meta rather than an assumption carried
// over from the previous build.
func handleCachedModule(m farmmodule.Module) farmmodule.Module {
	if m.Meta.Kind == farmmodule.MetaScript && m.Meta.Script != nil {
		reset := *m.Meta.Script
		reset.IsAnalyzed = false
		m.Meta.Script = &reset
	}
	return m
}

// fanOutCachedDeps reconstructs each dependency descriptor recorded on the
// cached module (its EdgeInfo carries the original source/kind/order) and
// re-enters buildModuleGraph for each one, reusing the already-known
// dependency id so a Cached importer never triggers a fresh resolve hook
// call for an already-known dependency.
func (b *GraphBuilder) fanOutCachedDeps(ctx context.Context, module farmmodule.Module, deps []farmcache.CachedModuleDependency) {
	for _, dep := range deps {
		dep := dep
		depID := dep.Dependency
		b.spawn(func() {
			param := farmplugin.ResolveHookParam{Source: dep.EdgeInfo.Source, Importer: &module.Id, Kind: dep.EdgeInfo.Kind}
			b.buildModuleGraph(ctx, param, &depID, dep.EdgeInfo.Order, "")
		})
	}
}

// fanOut spawns a build task per freshly-discovered dependency, in the
// order analyzeDeps returned them — that position becomes the edge's
// Order, independent of which task finishes first.
func (b *GraphBuilder) fanOut(ctx context.Context, module farmmodule.Module, deps []DependencyDescriptor) {
	for i, dep := range deps {
		dep, order := dep, i
		cachedDependency := dep.CachedDependency
		if !module.Immutable {
			cachedDependency = nil
		}
		b.spawn(func() {
			param := farmplugin.ResolveHookParam{Source: dep.Entry.Source, Importer: &module.Id, Kind: dep.Entry.Kind}
			b.buildModuleGraph(ctx, param, cachedDependency, order, "")
		})
	}
}

// resolve derives moduleID and classifies the outcome:
// reuse cachedDependency's id when supplied (skipping the resolve hook
// entirely), otherwise invoke the plugin driver's resolve hook. The
// result is Built if a node already exists for moduleID, Cached if a
// still-valid cache entry exists, else Success (and a dummy node is
// inserted to reserve the id before any further async work begins).
func (b *GraphBuilder) resolve(
	ctx context.Context,
	param *farmplugin.ResolveHookParam,
	cachedDependency *farmid.ModuleId,
) (farmid.ModuleId, farmplugin.ResolveHookResult, classification, error) {
	var moduleID farmid.ModuleId
	var result farmplugin.ResolveHookResult

	if cachedDependency != nil {
		moduleID = *cachedDependency
	} else {
		resolved, ok, err := b.driver.Resolve(ctx, param)
		if err != nil {
			return farmid.ModuleId{}, farmplugin.ResolveHookResult{}, 0, &farmerrors.ResolveError{
				Importer: importerPath(param.Importer), Src: param.Source, Source: err,
			}
		}
		if !ok {
			return farmid.ModuleId{}, farmplugin.ResolveHookResult{}, 0, &farmerrors.ResolveError{
				Importer: importerPath(param.Importer), Src: param.Source,
			}
		}
		result = resolved
		moduleID = farmid.New(result.ResolvedPath, result.Query)
	}

	b.dummyMu.Lock()
	defer b.dummyMu.Unlock()

	if b.graph.HasModule(moduleID) {
		return moduleID, result, classificationBuilt, nil
	}

	if b.cacheHit(ctx, moduleID) {
		return moduleID, result, classificationCached, nil
	}

	dummy := farmmodule.NewDummy(moduleID)
	if result.External {
		dummy.External = true
	}
	b.graph.AddModule(dummy)
	return moduleID, result, classificationSuccess, nil
}

// cacheHit probes both cache stores for moduleID and, when present,
// validates the entry. A builder without
// a cache (or without a validator) never reports a hit.
func (b *GraphBuilder) cacheHit(ctx context.Context, moduleID farmid.ModuleId) bool {
	if b.cache == nil || b.validator == nil {
		return false
	}
	if !b.cache.HasCache(moduleID, false) && !b.cache.HasCache(moduleID, true) {
		return false
	}
	cached, err := b.cache.GetCache(ctx, moduleID)
	if err != nil {
		return false
	}

	watchDeps := map[string]watchDepRecord{}
	for _, dep := range cached.WatchDependencies {
		watchDeps[dep.Dependency.RelativePath] = watchDepRecord{timestamp: dep.Timestamp, hash: dep.Hash}
	}
	if !b.validator.Valid(cached.Module.Id.RelativePath, cached.Module.ContentHash, cached.Module.LastUpdateTimestamp, watchDeps) {
		b.cache.InvalidateCache(moduleID, cached.Module.Immutable)
		return false
	}

	// Stash the validated snapshot back (GetCache is destructive) so the
	// Cached branch of buildModuleGraph can retrieve it again without
	// hitting the cache-broken condition.
	b.cache.SetCache(moduleID, cached)
	return true
}

func importerPath(id *farmid.ModuleId) string {
	if id == nil {
		return ""
	}
	return id.RelativePath
}

// commitEdge adds the edge importer -> moduleID carrying (source, kind,
// order), under the graph's own internal locking. An entry resolve (no
// importer) commits nothing, since there is no edge to record.
func (b *GraphBuilder) commitEdge(importer *farmid.ModuleId, moduleID farmid.ModuleId, source string, kind farmid.ResolveKind, order int) {
	if importer == nil {
		return
	}
	b.graph.AddEdgeItem(*importer, moduleID, farmmodule.ModuleGraphEdgeDataItem{Source: source, Kind: kind, Order: order})
}
