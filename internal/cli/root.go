package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bibedit-cli/internal/config"
	"bibedit-cli/internal/format"
	"bibedit-cli/internal/logging"
)

type App struct {
	ConfigPath string
	Dir        string
	URL        string
	User       string
	PrettyJSON bool
	Format     string
	LogLevel   string

	cfg    *config.Config
	logger *zerolog.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "bibedit",
		Short:        "Bibliographic record editor (service + CLI + TUI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the record service
  bibedit serve

  # Edit record 5 in the terminal editor
  bibedit edit 5

  # Shortcut for: bibedit edit 5
  bibedit 5

  # Apply a script of editing commands
  bibedit run changes.txt
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive editor.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runEditor(cmd, app, "")
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("BIBEDIT_CONFIG", ""), "Config file (default: ~/.bibedit/config.json)")
	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "Record store dir (overrides server.dir)")
	cmd.PersistentFlags().StringVar(&app.URL, "url", "", "Service URL (overrides client.url)")
	cmd.PersistentFlags().StringVar(&app.User, "user", "", "User to log in as (overrides client.user)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("BIBEDIT_FORMAT", "json"), "Output format (json|mrk)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (trace|debug|info|warn|error|off)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newRunCmd(app))
	cmd.AddCommand(newRecordsCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newChangesCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newTagsCmd(app))
	cmd.AddCommand(newValidateCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// config loads the config file once and applies flag overrides.
func (app *App) config() (config.Config, error) {
	if app.cfg != nil {
		return *app.cfg, nil
	}
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if v := strings.TrimSpace(app.Dir); v != "" {
		cfg.Server.Dir = v
	}
	if v := strings.TrimSpace(app.URL); v != "" {
		cfg.Client.URL = v
	}
	if v := strings.TrimSpace(app.User); v != "" {
		cfg.Client.User = v
	}
	app.cfg = &cfg
	return cfg, nil
}

// consoleLogger logs to stderr for commands that do not own the terminal.
func (app *App) consoleLogger(cmd *cobra.Command) zerolog.Logger {
	if app.logger == nil {
		l := logging.Console(cmd.ErrOrStderr(), "bibedit", logging.Level(app.LogLevel))
		app.logger = &l
	}
	return *app.logger
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
