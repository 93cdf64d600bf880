package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bibedit-cli/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var auth string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the record service",
		Long: strings.TrimSpace(`
Serve the record store over HTTP. Editors post transactions to /record/edit/;
each one is applied to the caller's draft and logged. Submit commits the draft.

With --auth token, clients log in at /login and send the issued bearer token.
`),
		Example: strings.TrimSpace(`
bibedit serve --addr 127.0.0.1:8770
bibedit serve --auth token --dir ./records
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			if v := strings.TrimSpace(addr); v != "" {
				cfg.Server.Addr = v
			}
			if v := strings.TrimSpace(auth); v != "" {
				cfg.Server.Auth = v
			}
			logger := app.consoleLogger(cmd)

			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.NewServer(ctx, server.Config{
				Addr:       cfg.Server.Addr,
				Dir:        cfg.Server.Dir,
				AuthMode:   cfg.Server.Auth,
				SessionTTL: cfg.SessionTTL(),
				LockGrace:  cfg.LockGrace(),
				Protected:  cfg.ProtectedFields,
				Rules:      cfg.Rules(),
				Logger:     logger,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer srv.Close()

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      srv.Addr(),
					"dir":       cfg.Server.Dir,
					"auth":      cfg.Server.Auth,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
			})
			if err := srv.ListenAndServe(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&auth, "auth", "", "Auth mode (none|token)")

	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
