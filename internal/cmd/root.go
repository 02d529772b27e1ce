// Package cmd implements the taco command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/testbench-tools/taco/internal/access"
	"github.com/testbench-tools/taco/internal/config"
	"github.com/testbench-tools/taco/internal/launcher"
	"github.com/testbench-tools/taco/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "taco",
	Short: "Testbench access coordinator",
	Long: `taco coordinates exclusive use of shared testbenches.

Locks live in a shared store (a SQLite file on a network share, or a
PostgreSQL database). Every client reads them through a short-lived local
cache, and sessions started with "taco connect" release their lock
automatically once the remote-desktop client exits.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.config/taco/config.yaml)")
}

// repository returns the settings repository selected by --config.
func repository() *config.FileRepository {
	return config.NewFileRepository(cfgFile)
}

// session is a Controller built from the settings, with its logger.
type session struct {
	cfg    *config.Config
	ctrl   *access.Controller
	logger *logging.Logger
}

// newSession builds a Controller from cfg with no topology and no store.
func newSession(cfg *config.Config) (*session, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	ctrl := access.New(access.Options{
		User:             cfg.User.Name,
		RefreshThreshold: cfg.Cache.RefreshThreshold(),
		Launcher: launcher.NewRDP(launcher.Options{
			Command: cfg.Launch.Command,
			Args:    cfg.Launch.Args,
			Dir:     cfg.Launch.RDPDir,
			Logger:  logger,
		}),
		Logger: logger,
	})
	return &session{cfg: cfg, ctrl: ctrl, logger: logger}, nil
}

// openSession loads the settings, builds a Controller from them, loads the
// configured topology and binds the configured store. Either failing is an
// error, since every command would then work on wrong data.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := repository().Load()
	if err != nil {
		return nil, err
	}
	s, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Topology.File == "" {
		s.Close()
		return nil, errors.New(`no testbench topology configured; run "taco topology set <file>"`)
	}
	if res := s.ctrl.LoadTopologyFile(ctx, cfg.Topology.File); !res.OK {
		s.Close()
		return nil, errors.New(res.Message)
	}
	if res := s.ctrl.ConfigureStore(ctx, cfg.Store.Location); !res.OK {
		s.Close()
		return nil, errors.New(res.Message)
	}
	return s, nil
}

func (s *session) Close() {
	if err := s.ctrl.Close(); err != nil {
		s.logger.Warn("failed to close lock store", "error", err)
	}
	_ = s.logger.Close()
}

// newLogger returns the configured file logger. Without a log file nothing
// is logged, so that command output stays clean.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if cfg.Logging.File == "" {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(cfg.Logging.File, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

func printResult(w io.Writer, res access.Result) error {
	if !res.OK {
		return errors.New(res.Message)
	}
	_, err := fmt.Fprintln(w, res.Message)
	return err
}
