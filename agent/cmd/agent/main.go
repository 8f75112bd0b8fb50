package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hrstress/hrstress/agent/internal/compute"
	"github.com/hrstress/hrstress/agent/internal/config"
	"github.com/hrstress/hrstress/agent/internal/explorer"
	"github.com/hrstress/hrstress/agent/internal/ingest"
	"github.com/hrstress/hrstress/agent/internal/shipper"
	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "hrstress-agent",
		Short:         "Heart-rate variability and stress analysis agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env is normal; the process environment still applies.
			_ = godotenv.Load(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before anything else")

	root.AddCommand(newRunCmd(), newAnalyzeCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyse configured sources on an interval and ship results to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		tsCol, hrCol string
		window       int
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Compare HRV metrics and stress across session files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := hrv.Options{Hints: hrv.Hints{Timestamp: tsCol, HeartRate: hrCol}, WindowSeconds: window}
			if err := hrv.ValidateWindow(window); err != nil {
				return err
			}

			rows, failures := explorer.Compare(args, opts)
			for _, f := range failures {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not process %s: %s\n", f.File, f.Err)
			}

			var err error
			if asJSON {
				err = explorer.RenderJSON(cmd.OutOrStdout(), rows, failures)
			} else if len(rows) > 0 {
				err = explorer.RenderTable(cmd.OutOrStdout(), rows)
			}
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return errors.New("no file could be analysed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tsCol, "ts-col", "", "timestamp column (auto-detected when empty)")
	cmd.Flags().StringVar(&hrCol, "hr-col", "", "heart-rate column (auto-detected when empty)")
	cmd.Flags().IntVar(&window, "window", hrv.DefaultWindowSeconds, "analysis window in seconds (30-300, reserved)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// pipeline is one configured source with its reader.
type pipeline struct {
	src    config.Source
	reader ingest.Reader
}

// pipelines is the live source set; it is swapped wholesale on config reload.
type pipelines struct {
	mu     sync.RWMutex
	items  []pipeline
	engine *compute.Engine
}

func (p *pipelines) set(items []pipeline, engine *compute.Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = items
	p.engine = engine
}

func (p *pipelines) snapshot() ([]pipeline, *compute.Engine) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.items, p.engine
}

func buildPipelines(cfg config.AgentConfig) []pipeline {
	var out []pipeline
	for _, src := range cfg.Sources {
		r, err := ingest.New(src)
		if err != nil {
			slog.Error("skipping source, could not build reader", "source", src.ID, "err", err)
			continue
		}
		out = append(out, pipeline{src: src, reader: r})
		slog.Info("registered source", "id", src.ID, "type", src.Type, "origin", src.Origin())
	}
	if len(out) == 0 {
		slog.Warn("no sources configured, agent will idle")
	}
	return out
}

func run(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Agent.Log, os.Stdout)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	slog.Info("hrstress-agent starting",
		"config", configPath,
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Agent.Sources),
		"scan_interval", cfg.Agent.ScanInterval,
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	live := &pipelines{}
	live.set(buildPipelines(cfg.Agent), compute.NewEngine(cfg.Agent.WindowSeconds))

	// Source changes take effect on the next scan. Server endpoint, auth and
	// buffer settings need a restart. A changed window invalidates every
	// cached digest, so the engine is replaced rather than pruned.
	go func() {
		err := config.Watch(ctx, configPath, func(updated *config.Config) {
			_, engine := live.snapshot()
			if updated.Agent.WindowSeconds != engine.WindowSeconds() {
				engine = compute.NewEngine(updated.Agent.WindowSeconds)
			} else {
				ids := make([]string, 0, len(updated.Agent.Sources))
				for _, src := range updated.Agent.Sources {
					ids = append(ids, src.ID)
				}
				engine.Forget(ids)
			}
			live.set(buildPipelines(updated.Agent), engine)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	scan := func(now time.Time) {
		items, engine := live.snapshot()
		for _, p := range items {
			res, err := p.reader.Read(ctx)
			if err != nil {
				slog.Warn("read error", "source", p.src.ID, "err", err)
				continue
			}
			if out := engine.Process(res, p.src.Hints(), now); out != nil {
				ship.Ship(out)
			}
		}
	}

	scan(time.Now())
	ticker := time.NewTicker(cfg.Agent.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("hrstress-agent shutting down", "pending_snapshots", ship.Pending())
			return nil
		case t := <-ticker.C:
			scan(t)
		}
	}
}
