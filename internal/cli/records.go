package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"bibedit-cli/internal/format"
	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/store"
)

func openDB(cmd *cobra.Command, app *App) (*store.DB, error) {
	cfg, err := app.config()
	if err != nil {
		return nil, err
	}
	return store.Store{Dir: cfg.Server.Dir}.Open(contextOf(cmd))
}

func parseRecID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, errUsage("invalid record id: %q", s)
	}
	return id, nil
}

func getRecord(cmd *cobra.Command, db *store.DB, recID int) (model.Record, error) {
	rec, err := db.Get(contextOf(cmd), recID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errNotFound("record", strconv.Itoa(recID))
	}
	return rec, err
}

func newRecordsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List committed records in the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()
			infos, err := db.List(contextOf(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			if infos == nil {
				infos = []store.RecordInfo{}
			}
			return format.WriteJSON(cmd.OutOrStdout(), map[string]any{"data": infos}, app.PrettyJSON)
		},
	}
}

func newShowCmd(app *App) *cobra.Command {
	var draft bool
	var owner string

	cmd := &cobra.Command{
		Use:   "show <recid>",
		Short: "Print a record (json or --format mrk)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recID, err := parseRecID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			db, err := openDB(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()

			var rec model.Record
			if draft {
				rec, err = db.Draft(contextOf(cmd), recID, owner)
				if errors.Is(err, store.ErrNotFound) {
					err = errNotFound("record", args[0])
				}
			} else {
				rec, err = getRecord(cmd, db, recID)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if app.Format == "mrk" {
				return format.WriteMRK(cmd.OutOrStdout(), rec)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"recID": recID, "title": rec.Title(), "record": rec}})
		},
	}

	cmd.Flags().BoolVar(&draft, "draft", false, "Show the draft being edited (created from the committed copy if absent)")
	cmd.Flags().StringVar(&owner, "owner", "local", "Draft owner when a draft is created")

	return cmd
}

// checkRecord validates every tag, indicator and subfield code of rec.
func checkRecord(v marc.Validator, rec model.Record) error {
	for _, tag := range rec.Tags() {
		for _, f := range rec[tag] {
			if f.IsControl() {
				if !v.IsValidControlTag(tag) {
					return fmt.Errorf("invalid control tag %q", tag)
				}
				continue
			}
			if !v.IsValidTag(tag) {
				return fmt.Errorf("invalid tag %q", tag)
			}
			if !v.IsValidIndicator(f.Ind1) || !v.IsValidIndicator(f.Ind2) {
				return fmt.Errorf("invalid indicators %q%q in %s", f.Ind1, f.Ind2, tag)
			}
			for _, sf := range f.Subfields {
				if !v.IsValidSubfieldCode(sf.Code) {
					return fmt.Errorf("invalid subfield code %q in %s", sf.Code, tag)
				}
			}
		}
	}
	return nil
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.mrk|->",
		Short: "Create a record from a mnemonic (.mrk) file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			var b []byte
			if args[0] == "-" {
				var buf bytes.Buffer
				if _, err := buf.ReadFrom(cmd.InOrStdin()); err != nil {
					return writeErr(cmd, err)
				}
				b = buf.Bytes()
			} else if b, err = os.ReadFile(args[0]); err != nil {
				return writeErr(cmd, err)
			}

			rec, err := format.ParseMRK(bytes.NewReader(b))
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(rec) == 0 {
				return writeErr(cmd, errUsage("%s: no fields", args[0]))
			}
			if err := checkRecord(marc.Validator{Rules: cfg.Rules()}, rec); err != nil {
				return writeErr(cmd, err)
			}

			db, err := openDB(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()
			recID, err := db.Create(contextOf(cmd), rec)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"recID": recID, "title": rec.Title(), "fields": rec.FieldCount()}})
		},
	}
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <recid>",
		Short: "Write a committed record in mnemonic (.mrk) form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recID, err := parseRecID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			db, err := openDB(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()
			rec, err := getRecord(cmd, db, recID)
			if err != nil {
				return writeErr(cmd, err)
			}

			if out == "" || out == "-" {
				return format.WriteMRK(cmd.OutOrStdout(), rec)
			}
			var buf bytes.Buffer
			if err := format.WriteMRK(&buf, rec); err != nil {
				return writeErr(cmd, err)
			}
			if err := atomic.WriteFile(out, &buf); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"recID": recID, "path": out}})
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default stdout)")

	return cmd
}

func newChangesCmd(app *App) *cobra.Command {
	var limit int
	var jsonl string

	cmd := &cobra.Command{
		Use:   "changes [recid]",
		Short: "Show the change log, newest last",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recID := 0
			if len(args) == 1 {
				id, err := parseRecID(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				recID = id
			}
			db, err := openDB(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()

			cs, err := db.Changes(contextOf(cmd), recID, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			if jsonl != "" {
				if err := store.WriteChangesJSONL(jsonl, cs); err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": jsonl, "count": len(cs)}})
			}
			if cs == nil {
				cs = []store.Change{}
			}
			return format.WriteJSON(cmd.OutOrStdout(), map[string]any{"data": cs}, app.PrettyJSON)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of changes (0 = all)")
	cmd.Flags().StringVar(&jsonl, "jsonl", "", "Write the changes to a JSONL file instead")

	return cmd
}
