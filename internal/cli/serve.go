package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okuzmin/a11ylens/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr      string
		maxAudits int
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit API over HTTP",
		Long:  "Exposes POST /api/audit for the embeddable widget, with a bound on concurrent audits since each one drives a real browser.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(".")
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			auditor, err := newAuditor(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			srv := server.New(auditor, server.Options{
				MaxAudits: maxAudits,
				Timeout:   timeout,
				Logger:    cmd.ErrOrStderr(),
			})

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s (max %d concurrent audits)\n", addr, maxAudits)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&maxAudits, "max-audits", 2, "maximum concurrent in-flight audits")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "per-request timeout")

	return cmd
}
