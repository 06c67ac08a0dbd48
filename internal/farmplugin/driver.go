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
	"sort"
	"time"

	"github.com/farmfe/farm-core-go/internal/farmid"
	"github.com/farmfe/farm-core-go/internal/farmmodule"
	"github.com/farmfe/farm-core-go/internal/farmrecord"
)

// Driver dispatches hooks across an ordered plugin list, sorted once at
// construction by descending priority — stable, so equal-priority
// plugins keep caller-provided order.
type Driver struct {
	plugins []Plugin
	record  *farmrecord.Manager // nil disables instrumentation
}

// New constructs a Driver. record may be nil to disable instrumentation
// entirely.
func New(plugins []Plugin, record *farmrecord.Manager) *Driver {
	sorted := make([]Plugin, len(plugins))
	copy(sorted, plugins)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Driver{plugins: sorted, record: record}
}

func nowMicros() int64 { return time.Now().UnixNano() / int64(time.Microsecond) }

// Config runs every plugin's Config hook in order, serial dispatch: the
// first error aborts the remaining plugins.
func (d *Driver) Config(ctx context.Context, config any) error {
	for _, p := range d.plugins {
		if err := p.Config(ctx, config); err != nil {
			return err
		}
	}
	return nil
}

// Resolve runs first-wins dispatch: the first plugin to return a present
// result wins; plugins after it are not consulted.
func (d *Driver) Resolve(ctx context.Context, param *ResolveHookParam) (ResolveHookResult, bool, error) {
	for _, p := range d.plugins {
		start := nowMicros()
		result, ok, err := p.Resolve(ctx, param)
		end := nowMicros()
		if err != nil {
			return ResolveHookResult{}, false, err
		}
		if ok && d.record != nil {
			importer := ""
			if param.Importer != nil {
				importer = param.Importer.RelativePath
			}
			key := result.ResolvedPath + farmid.StringifyQuery(result.Query)
			d.record.AddResolveRecord(key, farmrecord.ResolveRecord{
				Plugin:    p.Name(),
				Hook:      "resolve",
				Source:    param.Source,
				Importer:  importer,
				Kind:      param.Kind.String(),
				StartTime: start,
				EndTime:   end,
				Duration:  end - start,
			})
		}
		if ok {
			return result, true, nil
		}
	}
	return ResolveHookResult{}, false, nil
}

// Load runs first-wins dispatch over the load hook.
func (d *Driver) Load(ctx context.Context, param *LoadHookParam) (LoadHookResult, bool, error) {
	for _, p := range d.plugins {
		start := nowMicros()
		result, ok, err := p.Load(ctx, param)
		end := nowMicros()
		if err != nil {
			return LoadHookResult{}, false, err
		}
		if ok && d.record != nil {
			d.record.AddLoadRecord(param.ModuleId.String(), farmrecord.TransformRecord{
				Plugin:     p.Name(),
				Hook:       "load",
				Content:    result.Content,
				SourceMaps: result.SourceMap,
				ModuleType: result.ModuleType,
				StartTime:  start,
				EndTime:    end,
				Duration:   end - start,
			})
		}
		if ok {
			return result, true, nil
		}
	}
	return LoadHookResult{}, false, nil
}

// Parse runs first-wins dispatch over the parse hook.
func (d *Driver) Parse(ctx context.Context, param *ParseHookParam) (farmmodule.ModuleMetaData, bool, error) {
	for _, p := range d.plugins {
		start := nowMicros()
		meta, ok, err := p.Parse(ctx, param)
		end := nowMicros()
		if err != nil {
			return farmmodule.ModuleMetaData{}, false, err
		}
		if ok && d.record != nil {
			d.record.AddParseRecord(param.ModuleId.String(), farmrecord.ModuleRecord{
				Plugin:     p.Name(),
				Hook:       "parse",
				ModuleType: param.ModuleType,
				StartTime:  start,
				EndTime:    end,
				Duration:   end - start,
			})
		}
		if ok {
			return meta, true, nil
		}
	}
	return farmmodule.ModuleMetaData{}, false, nil
}

// Transform runs chain dispatch: every plugin observes the previous
// plugin's (content, module_type, source_map_chain) and may replace
// content, retag module_type, append a source-map segment, and/or clear
// the chain first via IgnorePreviousSourceMap.
func (d *Driver) Transform(ctx context.Context, param TransformHookParam) (TransformHookParam, error) {
	for _, p := range d.plugins {
		start := nowMicros()
		result, ok, err := p.Transform(ctx, &param)
		end := nowMicros()
		if err != nil {
			return param, err
		}
		if !ok {
			continue
		}
		if d.record != nil {
			d.record.AddTransformRecord(param.ModuleId.String(), farmrecord.TransformRecord{
				Plugin:     p.Name(),
				Hook:       "transform",
				Content:    result.Content,
				ModuleType: result.ModuleType,
				StartTime:  start,
				EndTime:    end,
				Duration:   end - start,
			})
		}

		param.Content = result.Content
		if result.ModuleType != "" {
			param.ModuleType = result.ModuleType
		}
		if result.IgnorePreviousSourceMap {
			param.SourceMapChain = nil
		}
		if result.SourceMap != "" {
			param.SourceMapChain = append(param.SourceMapChain, result.SourceMap)
		}
	}
	return param, nil
}

// ProcessModule runs serial dispatch: every plugin runs in order, the
// first error aborts the rest.
func (d *Driver) ProcessModule(ctx context.Context, module *farmmodule.Module) error {
	for _, p := range d.plugins {
		if err := p.ProcessModule(ctx, module); err != nil {
			return err
		}
	}
	return nil
}
