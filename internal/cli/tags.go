package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/protect"
	"bibedit-cli/internal/tagfmt"
)

func newTagsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags <ref>...",
		Short: "Look up display names of field or subfield references",
		Example: strings.TrimSpace(`
bibedit tags 245 24510 24510a 650_0
`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			f, err := cfg.Formatter()
			if err != nil {
				return writeErr(cmd, err)
			}
			f.Format = tagfmt.FormatHuman
			policy := protect.NewPolicy(cfg.ProtectedFields)

			out := make([]map[string]any, 0, len(args))
			for _, ref := range args {
				label := f.FieldTag(ref)
				if len(ref) > 5 {
					label = f.SubfieldTag(ref)
				}
				out = append(out, map[string]any{
					"ref":       ref,
					"name":      label,
					"protected": policy.IsProtected(ref),
				})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	return cmd
}

const validateKinds = "tag|controltag|indicator|code"

func newValidateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <" + validateKinds + "> <value>",
		Short: "Check a tag, indicator or subfield code against the record grammar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			v := marc.Validator{Rules: cfg.Rules()}
			kind, value := strings.ToLower(args[0]), args[1]

			var ok bool
			switch kind {
			case "tag":
				ok = v.IsValidTag(value)
			case "controltag":
				ok = v.IsValidControlTag(value)
			case "indicator":
				ok = v.IsValidIndicator(value)
			case "code":
				ok = v.IsValidSubfieldCode(value)
			default:
				return writeErr(cmd, errUsage("unknown kind %q (expected %s)", args[0], validateKinds))
			}
			if err := writeOut(cmd, app, map[string]any{"data": map[string]any{"kind": kind, "value": value, "valid": ok}}); err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("invalid %s: %q", kind, value)
			}
			return nil
		},
	}
	return cmd
}
