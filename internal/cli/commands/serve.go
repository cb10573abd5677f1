package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"dtp/internal/server"
)

// ServeCommand answers JSON-RPC requests on stdin/stdout
type ServeCommand struct {
	deps *Deps
}

// NewServeCommand creates a new ServeCommand
func NewServeCommand(deps *Deps) *ServeCommand {
	return &ServeCommand{deps: deps}
}

// Execute runs the command
func (sc *ServeCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := sc.deps.Log

	if addr := sc.deps.Config.Flags.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(sc.deps.Registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Info("serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	sc.deps.Drain()
	log.Info("serving requests on stdin")
	return server.New(sc.deps.Coordinator, os.Stdout, log.With("component", "server")).Serve(ctx, os.Stdin)
}
