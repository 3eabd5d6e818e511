package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
	"github.com/ravi-parthasarathy/drafter/pkg/protoparse"
	"github.com/ravi-parthasarathy/drafter/pkg/solution"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags and config are read.
type app struct {
	cfgFile string
	cfg     config
	parser  *protoparse.Parser
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "drafter",
		Short: "Drafter: design gRPC stage pipelines and export them for deployment",
		Long: `Drafter keeps a pipeline design as a persisted solution document.

Assets are container images described by a .proto service definition. Each
remote method of an asset can be instantiated as a stage; stages are wired
together requester to responder when their message types match. A finished
design exports as a docker-compose.yml plus the orchestrator's config.yml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Root().PersistentFlags(), a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if err := initLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}
			a.parser, err = protoparse.New(cfg.CacheSize, slog.Default())
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.String("store", "", "solution store: a directory, file://, s3:// or postgres:// URL")
	pf.StringP("solution", "s", "", "name of the solution document to work on")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")

	root.AddCommand(assetCmd(a))
	root.AddCommand(stageCmd(a))
	root.AddCommand(volumeCmd(a))
	root.AddCommand(connectCmd(a))
	root.AddCommand(disconnectCmd(a))
	root.AddCommand(lintCmd(a))
	root.AddCommand(graphCmd(a))
	root.AddCommand(historyCmd(a))
	root.AddCommand(clearCmd(a))
	root.AddCommand(importCmd(a))
	root.AddCommand(dumpCmd(a))
	root.AddCommand(exportCmd(a))
	root.AddCommand(schemaCmd())
	root.AddCommand(diffCmd(a))
	root.AddCommand(solutionsCmd(a))
	return root
}

// initLogger installs the default slog logger. Diagnostics go to stderr so
// stdout stays clean for documents.
func initLogger(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q: use debug, info, warn or error", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q: use text or json", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// ─── solution access ─────────────────────────────────────────────────────────

func (a *app) reducer() pipeline.Reducer {
	return pipeline.Reducer{Parser: a.parser}
}

func (a *app) backend(ctx context.Context) (solution.Backend, error) {
	b, err := solution.Open(ctx, a.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return b, nil
}

// load reads the current solution without modifying it.
func (a *app) load(ctx context.Context) (pipeline.State, error) {
	return a.loadNamed(ctx, a.cfg.Solution)
}

func (a *app) loadNamed(ctx context.Context, name string) (pipeline.State, error) {
	b, err := a.backend(ctx)
	if err != nil {
		return pipeline.State{}, err
	}
	defer b.Close()
	return solution.Load(ctx, b, name)
}

// update loads the current solution into a Store, lets fn dispatch to it
// and saves the result. Nothing is saved when fn fails.
func (a *app) update(ctx context.Context, fn func(*pipeline.Store) error) (pipeline.State, error) {
	b, err := a.backend(ctx)
	if err != nil {
		return pipeline.State{}, err
	}
	defer b.Close()

	s, err := solution.Load(ctx, b, a.cfg.Solution)
	if err != nil {
		return pipeline.State{}, err
	}
	store := pipeline.NewStore(a.reducer(), pipeline.WithState(s), pipeline.WithLogger(slog.Default()))
	if err := fn(store); err != nil {
		return pipeline.State{}, err
	}
	next := store.Snapshot()
	if err := solution.Save(ctx, b, a.cfg.Solution, next); err != nil {
		return pipeline.State{}, err
	}
	slog.Info("solution saved", "solution", a.cfg.Solution, "history", len(next.Actions))
	return next, nil
}

// dispatch is update for a single action.
func (a *app) dispatch(ctx context.Context, act pipeline.Action) (pipeline.State, error) {
	return a.update(ctx, func(st *pipeline.Store) error { return st.Dispatch(act) })
}
