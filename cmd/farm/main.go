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

// Command farm is a thin wiring layer over the graph-building core: it
// resolves flags to a GraphBuilder configuration, runs the build, and
// reports the resulting module graph. It is deliberately not a config
// loader or a real bundler CLI — both are external collaborators — only
// enough surface to exercise every wired component end to end:
// storageos-backed caches guarded by an
// on-disk flock, the plugin driver, and the graph builder's fan-out.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/farmfe/farm-core-go/internal/farmbuild"
	"github.com/farmfe/farm-core-go/internal/farmcache"
	"github.com/farmfe/farm-core-go/internal/farmmodule"
	"github.com/farmfe/farm-core-go/internal/farmplugin"
	"github.com/farmfe/farm-core-go/internal/farmrecord"
	"github.com/farmfe/farm-core-go/pkg/storage/storageos"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "farm",
		Short:         "Resolve and build a module graph from a set of entries",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newBuildCommand())
	return root
}

func newBuildCommand() *cobra.Command {
	var (
		root      string
		cacheDir  string
		verbose   bool
		entries   map[string]string
		recordHot bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the module graph reachable from --entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), buildOptions{
				root: root, cacheDir: cacheDir, verbose: verbose,
				entries: entries, recordHooks: recordHot,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&root, "root", ".", "project root every entry and resolved path is relative to")
	flags.StringVar(&cacheDir, "cache-dir", "", "cache directory; caching is disabled if empty")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringToStringVarP(&entries, "entry", "e", nil, "name=path entry, repeatable")
	flags.BoolVar(&recordHot, "record", false, "capture per-hook timing records")

	return cmd
}

type buildOptions struct {
	root        string
	cacheDir    string
	verbose     bool
	entries     map[string]string
	recordHooks bool
}

func runBuild(ctx context.Context, opts buildOptions) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if len(opts.entries) == 0 {
		return fmt.Errorf("at least one --entry name=path is required")
	}

	var record *farmrecord.Manager
	if opts.recordHooks {
		record = farmrecord.NewManager()
	}

	plugins := []farmplugin.Plugin{newFsPlugin(opts.root)}
	driver := farmplugin.New(plugins, record)

	graph := farmmodule.NewModuleGraph()
	watch := farmmodule.NewWatchGraph()

	var cache *farmcache.Manager
	var validator *farmbuild.Validator
	if opts.cacheDir != "" {
		cache, err = openCache(ctx, opts.cacheDir, logger)
		if err != nil {
			return err
		}
		validator = farmbuild.NewValidator(farmbuild.OSFileSystem{}, true, false)
	}

	builder := farmbuild.New(graph, watch, driver, cache, validator, nil, logger, farmbuild.Config{})

	if err := builder.Build(ctx, opts.entries); err != nil {
		return fmt.Errorf("build module graph: %w", err)
	}

	if cache != nil {
		if err := cache.WriteCache(ctx); err != nil {
			return fmt.Errorf("flush cache: %w", err)
		}
	}

	order, cycles := graph.TopoSort()
	logger.Info("build complete",
		zap.Int("modules", len(order)),
		zap.Int("entries", len(opts.entries)),
		zap.Int("cycles", len(cycles)),
	)
	for _, id := range order {
		fmt.Println(id.String())
	}
	return nil
}

func openCache(ctx context.Context, cacheDir string, logger *zap.Logger) (*farmcache.Manager, error) {
	if _, err := storageos.AcquireLock(ctx, cacheDir); err != nil {
		return nil, err
	}

	mutableDir := farmcache.StorePath(cacheDir, "farm", "", "mutable-modules", farmcache.ModeDevelopment)
	immutableDir := farmcache.StorePath(cacheDir, "farm", "", "immutable-modules", farmcache.ModeDevelopment)

	mutableBucket, err := storageos.NewBucket(mutableDir)
	if err != nil {
		return nil, err
	}
	immutableBucket, err := storageos.NewBucket(immutableDir)
	if err != nil {
		return nil, err
	}

	mutableLow, err := farmcache.NewStore(ctx, mutableBucket, logger)
	if err != nil {
		return nil, err
	}
	immutableLow, err := farmcache.NewStore(ctx, immutableBucket, logger)
	if err != nil {
		return nil, err
	}
	immutable, err := farmcache.NewImmutableStore(ctx, immutableLow)
	if err != nil {
		return nil, err
	}

	return farmcache.NewManager(farmcache.NewMutableStore(mutableLow), immutable), nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}
