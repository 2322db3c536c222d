package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/japaniel/bsdetect/pkg/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, closeApp, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer closeApp()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			srv := server.NewServer(a.service, a.store, a.sessions, server.Options{
				Addr:           a.cfg.Server.Addr,
				ReadTimeout:    a.cfg.Server.ReadTimeout,
				WriteTimeout:   a.cfg.Server.WriteTimeout,
				MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
				Logger:         a.logger.Named("http"),
			})
			if err := srv.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", srv.Addr())

			<-ctx.Done()
			srv.Stop()
			return nil
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (overrides config and BSDETECT_ADDR)")
	return c
}
