package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"bibedit-cli/internal/publish"
	"bibedit-cli/internal/tagfmt"
)

func newPublishCmd(app *App) *cobra.Command {
	var to string
	var all bool
	var history bool
	var overwrite bool
	var raw bool

	cmd := &cobra.Command{
		Use:   "publish [recid]",
		Short: "Write committed records as markdown pages",
		Example: strings.TrimSpace(`
bibedit publish 42 --to ./site
bibedit publish --all --to ./site --history --overwrite
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return writeErr(cmd, errUsage("give a record id or --all"))
			}
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			opt := publish.WriteOptions{
				RenderOptions: publish.RenderOptions{IncludeHistory: history},
				Overwrite:     overwrite,
			}
			if !raw {
				f, err := cfg.Formatter()
				if err != nil {
					return writeErr(cmd, err)
				}
				f.Format = tagfmt.FormatHuman
				opt.Formatter = f
			}

			db, err := openDB(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()

			var res publish.WriteResult
			if all {
				res, err = publish.WriteAll(contextOf(cmd), db, to, opt)
			} else {
				recID, perr := parseRecID(args[0])
				if perr != nil {
					return writeErr(cmd, perr)
				}
				if _, err := getRecord(cmd, db, recID); err != nil {
					return writeErr(cmd, err)
				}
				res, err = publish.WriteRecord(contextOf(cmd), db, recID, to, opt)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Output directory")
	cmd.Flags().BoolVar(&all, "all", false, "Publish every record and an index")
	cmd.Flags().BoolVar(&history, "history", false, "Include the change log")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing pages")
	cmd.Flags().BoolVar(&raw, "raw-tags", false, "Label fields by reference instead of name")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
