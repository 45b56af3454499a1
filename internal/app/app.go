package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/tfgraph/internal/ctxlog"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/expand"
	"github.com/vk/tfgraph/internal/graph"
	"github.com/vk/tfgraph/internal/metadata"
	"github.com/vk/tfgraph/internal/parser"
	"github.com/vk/tfgraph/internal/resolver"
	"github.com/vk/tfgraph/internal/source"
)

// VarEnvPrefix marks environment variables that feed configuration
// variables, e.g. TF_VAR_region=eu-west-1.
const VarEnvPrefix = "TF_VAR_"

// Config holds the inputs of one pipeline run.
type Config struct {
	// Sources are the configuration locators, local directories or remote
	// addresses, merged in order with later sources winning collisions.
	Sources []string
	// VarFiles are variable definition files, merged in order.
	VarFiles []string
	// Vars are name=value overrides, the highest precedence tier.
	Vars []string
	// AnnotationsPath points at an optional yaml overlay applied to the
	// extracted metadata.
	AnnotationsPath string
}

// Result is a completed run: the graph plus every finding collected along
// the way. A Result exists only when no fatal error occurred.
type Result struct {
	Graph *graph.Graph
	Diags []diag.Diagnostic
}

// App encapsulates a configured pipeline: its logger and settings.
type App struct {
	logger   *slog.Logger
	settings *Settings
}

// New builds an App logging to outW per the settings.
func New(outW io.Writer, settings *Settings) *App {
	return &App{
		logger:   newLogger(settings.LogLevel, settings.LogFormat, outW),
		settings: settings,
	}
}

// Logger exposes the app's logger, primarily for the CLI layer.
func (a *App) Logger() *slog.Logger { return a.logger }

// Run executes the pipeline. Fatal errors (unreachable sources, files that
// do not parse) return an error and no Result; everything recoverable lands
// in Result.Diags instead.
func (a *App) Run(ctx context.Context, cfg *Config) (*Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	sink := diag.NewSink()

	loader := source.NewLoader(a.settings.FetchTimeout)
	defer loader.Close()

	loaded, err := loader.Load(ctx, cfg.Sources, cfg.VarFiles)
	if err != nil {
		return nil, err
	}

	tree, err := parser.Parse(ctx, loaded.Files, sink)
	if err != nil {
		return nil, err
	}

	varFileValues, err := resolver.ParseVarFiles(loaded.VarFiles)
	if err != nil {
		return nil, err
	}
	overrides, err := resolver.ParseOverrides(cfg.Vars)
	if err != nil {
		return nil, err
	}
	envValues, err := resolver.ParseOverrides(varEnvPairs(os.Environ()))
	if err != nil {
		return nil, err
	}

	set := resolver.Resolve(ctx, tree, resolver.Options{
		Overrides:     overrides,
		VarFileValues: varFileValues,
		EnvValues:     envValues,
		MaxPasses:     a.settings.MaxResolvePasses,
	}, sink)

	records := metadata.Extract(ctx, set, sink)

	if cfg.AnnotationsPath != "" {
		src, err := os.ReadFile(cfg.AnnotationsPath)
		if err != nil {
			return nil, fmt.Errorf("annotations file: %w", err)
		}
		overlay, err := metadata.ParseOverlay(src)
		if err != nil {
			return nil, err
		}
		overlay.Apply(records, sink)
	}

	instances := expand.Expand(ctx, set, records, sink)
	g := graph.Build(ctx, set, records, instances, sink)

	a.logger.Info("pipeline complete",
		"modules", tree.Len(),
		"resources", len(records),
		"instances", len(g.Nodes),
		"edges", len(g.Edges),
	)
	return &Result{Graph: g, Diags: sink.All()}, nil
}

// varEnvPairs extracts name=value pairs from TF_VAR_ environment entries.
func varEnvPairs(environ []string) []string {
	var pairs []string
	for _, kv := range environ {
		if rest, ok := strings.CutPrefix(kv, VarEnvPrefix); ok {
			pairs = append(pairs, rest)
		}
	}
	return pairs
}
