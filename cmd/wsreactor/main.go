// wsreactor - readiness driven websocket handshake server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gobwas/wsreactor/config"
	"github.com/gobwas/wsreactor/internal/logging"
	"github.com/gobwas/wsreactor/reactor"
)

func main() {
	if err := newRootCmd(os.LookupEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command. Flag defaults come from environment
// variables looked up by lookup, falling back to config.Default().
func newRootCmd(lookup func(string) (string, bool)) *cobra.Command {
	cfg := config.Default()
	envErr := config.LoadEnv(&cfg, lookup)

	cmd := &cobra.Command{
		Use:   "wsreactor",
		Short: "Accept TCP connections and upgrade them to websocket",
		Long: `Run a single-threaded server that accepts TCP connections and
completes the websocket opening handshake on each of them.

Every flag may also be set by the WSREACTOR_* environment variable of the
same name. Flags take precedence over the environment.`,
		Example: `  # Listen on the default address
  wsreactor

  # Debug logs in JSON
  wsreactor --addr 127.0.0.1:9000 --log-level debug --log-format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envErr != nil {
				return reportErr(cmd, fmt.Errorf("environment: %w", envErr))
			}
			if err := cfg.Validate(); err != nil {
				return reportErr(cmd, fmt.Errorf("invalid configuration: %w", err))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return reportErr(cmd, serve(ctx, cfg))
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP address to listen on")
	f.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "Listen backlog")
	f.IntVar(&cfg.ReadBufferSize, "read-buffer", cfg.ReadBufferSize, "Size of buffer for a single read call")
	f.IntVar(&cfg.MaxHeaderSize, "max-header-size", cfg.MaxHeaderSize, "Handshake request head size limit")
	f.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "Readiness events handled per poll call")
	f.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "Live connections limit (0 = unlimited)")
	f.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Drop connections idle before handshake completes (0 = never)")
	f.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "Drop connections whose handshake is not completed this long after accept (0 = never)")
	f.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Poll wait bound")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")

	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logging.New(cfg.Logging())

	r, err := reactor.Listen(cfg, reactor.WithLogger(log.With("component", "reactor")))
	if err != nil {
		return err
	}
	log.Info("listening", "addr", r.Addr())

	runErr := r.Run(ctx)
	if err := r.Close(); err != nil {
		log.Warn("shutdown", "error", err)
	}
	return runErr
}

func reportErr(cmd *cobra.Command, err error) error {
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "wsreactor:", err)
	}
	return err
}
