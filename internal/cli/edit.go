package cli

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bibedit-cli/internal/config"
	"bibedit-cli/internal/engine"
	"bibedit-cli/internal/logging"
	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/nav"
	"bibedit-cli/internal/protect"
	"bibedit-cli/internal/syncproto"
	"bibedit-cli/internal/tui"
)

func newEditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit [recid|token]",
		Short: "Open the terminal editor",
		Example: strings.TrimSpace(`
bibedit edit
bibedit edit 5
bibedit edit '#state=edit&recid=5'
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			return runEditor(cmd, app, start)
		},
	}
}

// startToken turns a record id or a navigation token into the initial token.
func startToken(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" || strings.HasPrefix(arg, "#") {
		return arg, nil
	}
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return "", errUsage("expected a record id or a #state=... token, got %q", arg)
	}
	return nav.Serialize(model.ModeEdit, id), nil
}

func sessionOptions(cfg config.Config, logger zerolog.Logger) engine.Options {
	return engine.Options{
		Validator: marc.Validator{Rules: cfg.Rules()},
		Policy:    protect.NewPolicy(cfg.ProtectedFields),
		Logger:    logger,
	}
}

func dial(ctx context.Context, cfg config.Config, logger zerolog.Logger) *syncproto.Client {
	t := syncproto.NewHTTPTransport(cfg.Client.URL, cfg.Client.User, cfg.RequestTimeout())
	return syncproto.NewClient(ctx, t, logger)
}

func runEditor(cmd *cobra.Command, app *App, start string) error {
	token, err := startToken(start)
	if err != nil {
		return writeErr(cmd, err)
	}
	cfg, err := app.config()
	if err != nil {
		return writeErr(cmd, err)
	}
	formatter, err := cfg.Formatter()
	if err != nil {
		return writeErr(cmd, err)
	}

	// The editor owns the terminal, so logs go to a file.
	logger := zerolog.Nop()
	if dir, err := config.ConfigDir(); err == nil {
		l, closer, err := logging.File(filepath.Join(dir, "bibedit.log"), "bibedit", logging.Level(app.LogLevel))
		if err == nil {
			defer closer.Close()
			logger = l
		}
	}

	ctx, cancel := context.WithCancel(contextOf(cmd))
	defer cancel()

	logger.Info().Str("url", cfg.Client.URL).Str("start", token).Msg("editor starting")
	return tui.Run(ctx, tui.Options{
		Client:    dial(ctx, cfg, logger),
		Location:  nav.NewLocation(token),
		Poller:    nav.NewPoller(cfg.PollInterval()),
		Session:   sessionOptions(cfg, logger),
		Formatter: formatter,
		Logger:    logger,
	})
}
