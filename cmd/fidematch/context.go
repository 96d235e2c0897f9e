package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/codeGROOVE-dev/fidematch/pkg/config"
	"github.com/codeGROOVE-dev/fidematch/pkg/fidematch"
)

// commandContext carries the persistent flags shared by every subcommand.
type commandContext struct {
	configPath string
	debug      bool
	noCache    bool

	svcOpts []fidematch.Option
}

func newCommandContext(svcOpts ...fidematch.Option) *commandContext {
	return &commandContext{svcOpts: svcOpts}
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(strings.TrimSpace(c.configPath))
	if err != nil {
		return nil, err
	}
	if c.debug {
		cfg.Log.Level = "debug"
	}
	if c.noCache {
		cfg.HTTP.NoCache = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, err := cfg.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// withService opens a Service for cfg, runs fn, and closes it.
func (c *commandContext) withService(
	ctx context.Context,
	cfg *config.Config,
	stderr io.Writer,
	extra []fidematch.Option,
	fn func(*fidematch.Service) error,
) error {
	logger := newLogger(cfg, stderr)
	opts := append([]fidematch.Option{fidematch.WithLogger(logger)}, c.svcOpts...)
	opts = append(opts, extra...)

	svc, err := fidematch.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close service", "error", err)
		}
	}()
	return fn(svc)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
