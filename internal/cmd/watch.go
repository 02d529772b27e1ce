package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/testbench-tools/taco/internal/logging"
	"github.com/testbench-tools/taco/internal/topology"
	"github.com/testbench-tools/taco/internal/tui"
)

var watchMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the interactive testbench view",
	Long: `Open the interactive testbench view.

The view lists every testbench grouped as in the topology file and keeps
the lock state current. The topology is reloaded when the file changes
(topology.watch). With --metrics-addr, or metrics.address in the config,
Prometheus metrics are served on /metrics while the view is open.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (host:port)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	addr := watchMetricsAddr
	if addr == "" {
		addr = s.cfg.Metrics.Address
	}
	if addr != "" {
		_, stop, err := serveMetrics(addr, s.logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	opts := tui.Options{
		TopologyFile: s.cfg.Topology.File,
		Tick:         s.cfg.TUI.TickInterval(),
	}
	if s.cfg.Topology.Watch {
		w, err := topology.Watch(s.cfg.Topology.File, s.logger)
		if err != nil {
			s.logger.Warn("topology changes will not be picked up", "error", err)
		} else {
			defer w.Close()
			opts.Reload = w.Changes()
		}
	}
	return tui.Run(ctx, s.ctrl, opts)
}

// serveMetrics starts the /metrics endpoint on addr. It returns the bound
// address and a function that shuts the endpoint down.
func serveMetrics(addr string, logger *logging.Logger) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics endpoint: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log := logger.WithComponent("metrics")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	log.Info("serving metrics", "address", ln.Addr().String())

	return ln.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
