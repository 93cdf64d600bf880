package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bibedit-cli/internal/command"
	"bibedit-cli/internal/engine"
	"bibedit-cli/internal/nav"
)

func newRunCmd(app *App) *cobra.Command {
	var start string
	var showRecords bool

	cmd := &cobra.Command{
		Use:   "run <script|->",
		Short: "Apply a script of editing commands against the service",
		Long: strings.TrimSpace(`
Run editing commands headlessly, one per line. Lines starting with # are
comments. "wait" blocks until every request sent so far has been answered.
The run stops at the first rejected command.

Commands:
` + command.Usage),
		Example: strings.TrimSpace(`
bibedit run fix-titles.txt
printf 'open 5\nwait\nedit 245 2 0 Dune\nsubmit\n' | bibedit run -
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := startToken(start)
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			logger := app.consoleLogger(cmd)

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				defer f.Close()
				r = f
			}

			ctx, cancel := context.WithCancel(contextOf(cmd))
			defer cancel()

			ui := &engine.TextUI{Out: cmd.OutOrStdout(), ShowRecords: showRecords}
			client := dial(ctx, cfg, logger)
			session := engine.NewSession(ui, client, nav.NewLocation(token), sessionOptions(cfg, logger))
			loop := engine.NewLoop(session, client.Outcomes(), nav.NewPoller(cfg.PollInterval()))
			done := make(chan error, 1)
			go func() { done <- loop.Run(ctx) }()

			if token != "" {
				if err := loop.Call(ctx, func(s *engine.Session) error {
					s.Poll()
					return nil
				}); err != nil {
					return writeErr(cmd, err)
				}
			}
			if err := command.Run(ctx, loop, r); err != nil {
				return writeErr(cmd, err)
			}
			if err := loop.WaitIdle(ctx); err != nil {
				return writeErr(cmd, err)
			}
			cancel()
			<-done

			if st, text := ui.Status(); st == engine.StatusError {
				return writeErr(cmd, errors.New(text))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Record id or #state=... token to open first")
	cmd.Flags().BoolVar(&showRecords, "show-records", false, "Print the record after each change")

	return cmd
}
