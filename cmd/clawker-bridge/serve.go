package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/schmitthub/clawker-bridge/internal/bridge"
	"github.com/schmitthub/clawker-bridge/internal/checkpoint"
	"github.com/schmitthub/clawker-bridge/internal/config"
	"github.com/schmitthub/clawker-bridge/internal/logger"
	"github.com/schmitthub/clawker-bridge/internal/rotatelog"
	"github.com/schmitthub/clawker-bridge/internal/supervisor"
	"github.com/schmitthub/clawker-bridge/internal/tagparser"
)

// newServeCmd builds the `serve` subcommand: load config, wire the
// supervisor and bridge together, and run the WebSocket listener until
// interrupted.
func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Supervise the agent subprocess and serve the WebSocket bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Options{
		JSONLogPath: cfg.JSONLogPath,
		Console:     true,
		Otel: func() *logger.OtelConfig {
			if !cfg.Otel.Enabled {
				return nil
			}
			return &logger.OtelConfig{Endpoint: cfg.Otel.Endpoint, Insecure: cfg.Otel.Insecure}
		}(),
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown(context.Background()) }()

	projectRoot, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(projectRoot); err == nil {
		projectRoot = resolved
	}

	var rlog *rotatelog.File
	if cfg.LogPath != "" {
		maxSize := cfg.LogMaxBytes
		if maxSize <= 0 {
			maxSize = rotatelog.DefaultMaxSize
		}
		rlog, err = rotatelog.Open(filepath.Join(projectRoot, cfg.LogPath), maxSize)
		if err != nil {
			return err
		}
		defer rlog.Close()
	}

	var checkpointFunc bridge.CheckpointFunc
	if cfg.Checkpoint.URL != "" {
		checkpointFunc = checkpoint.New(cfg.Checkpoint.URL, cfg.Checkpoint.SharedSecret).Func
	}

	tagMode := tagparser.ModeEvent
	switch cfg.OutgoingTagMode {
	case "raw":
		tagMode = tagparser.ModeRaw
	case "both":
		tagMode = tagparser.ModeBoth
	}
	tags := tagparser.DefaultTags()
	if len(cfg.OutgoingTagNames) > 0 {
		tags = make([]tagparser.Tag, len(cfg.OutgoingTagNames))
		for i, name := range cfg.OutgoingTagNames {
			tags[i] = tagparser.NewTag(name)
		}
	}

	ringCapacity := cfg.RingBufferSize
	if ringCapacity <= 0 {
		ringCapacity = 2000
	}

	b := bridge.New(bridge.Options{
		RingCapacity: ringCapacity,
		TagMode:      tagMode,
		Tags:         tags,
		Checkpoint:   checkpointFunc,
	})

	sup := supervisor.New(supervisor.LaunchSpec{
		ExplicitPath:  cfg.SubprocessPath,
		BinName:       cfg.BinName,
		PackageRunner: cfg.PackageRunner,
		PackageSpec:   cfg.PackageSpec,
		UsePTY:        cfg.PTY,
	}, projectRoot, cfg.RestartDelay, b.Callbacks())
	b.SetSupervisor(sup)

	if rlog != nil {
		logger.Log = logger.Log.Hook(rotatelogHook{rlog})
	}

	trackedWrite := func(path string) bool {
		for _, p := range sup.ModifiedFiles() {
			if p == path {
				return true
			}
		}
		return false
	}
	if watcher, err := checkpoint.WatchProject(projectRoot, trackedWrite); err != nil {
		logger.Log.Warn().Err(err).Msg("clawker-bridge: project file watch disabled")
	} else {
		defer watcher.Close()
	}

	if err := sup.Start(ctx); err != nil {
		return err
	}
	defer sup.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.ServeWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"service":"clawker-bridge","status":"ok"}`))
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("addr", cfg.ListenAddr).Msg("clawker-bridge: listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
