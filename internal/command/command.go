// Package command parses and runs the line-oriented editing language used by
// scripts and the TUI prompt:
//
//	go '#state=edit&recid=5'
//	open 5
//	edit 245 2 0 'New title'
//	edit 005 1 - 20240101
//	add 245 2 b=subtitle c='by someone'
//	addfield 650 _0 a=Dune
//	addfield 005 =20240101
//	move 245 2 0 1
//	del 245 2:0,1 650 3
//	submit | cancel | delete-record | back | forward | wait
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"bibedit-cli/internal/model"
	"bibedit-cli/internal/record"
)

type Kind string

const (
	KindNone         Kind = ""
	KindGo           Kind = "go"
	KindOpen         Kind = "open"
	KindEdit         Kind = "edit"
	KindAdd          Kind = "add"
	KindAddField     Kind = "addfield"
	KindMove         Kind = "move"
	KindDelete       Kind = "del"
	KindSubmit       Kind = "submit"
	KindCancel       Kind = "cancel"
	KindDeleteRecord Kind = "delete-record"
	KindBack         Kind = "back"
	KindForward      Kind = "forward"
	KindWait         Kind = "wait"
)

// Command is one parsed line. Only the fields its Kind uses are set.
type Command struct {
	Kind Kind

	Token string
	RecID int

	Tag         string
	FieldNumber int
	// Index is record.NoSubfield for a control value.
	Index int
	Value string

	Subfields     []model.Subfield
	AcceptPartial bool
	Field         model.Field

	From, To int

	Plan model.DeletionPlan
}

// Usage lists the accepted command forms.
const Usage = `go <token>
open <recid>
edit <tag> <n> <index|-> <value>
add [--partial] <tag> <n> <code>=<value>...
addfield <tag> <ind1ind2> <code>=<value>...
addfield <tag> =<control value>
move <tag> <n> <from> <to>
del <tag> <n>[:<i>,<j>...] [<tag> <n>[:...]]...
submit | cancel | delete-record | back | forward | wait`

// ParseError reports a malformed line.
type ParseError struct {
	Line string
	Msg  string
}

func (e ParseError) Error() string { return fmt.Sprintf("%s: %s", e.Msg, e.Line) }

// Parse reads one line. Blank lines and lines starting with '#' parse to a
// KindNone command.
func Parse(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Command{}, nil
	}
	args, err := shellwords.Parse(trimmed)
	if err != nil {
		return Command{}, ParseError{Line: trimmed, Msg: err.Error()}
	}
	if len(args) == 0 {
		return Command{}, nil
	}
	p := parser{line: trimmed, args: args[1:]}
	cmd, err := p.parse(Kind(strings.ToLower(args[0])))
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

type parser struct {
	line string
	args []string
}

func (p parser) fail(format string, a ...any) error {
	return ParseError{Line: p.line, Msg: fmt.Sprintf(format, a...)}
}

func (p parser) want(n int) error {
	if len(p.args) != n {
		return p.fail("expected %d argument(s), got %d", n, len(p.args))
	}
	return nil
}

func (p parser) atLeast(n int) error {
	if len(p.args) < n {
		return p.fail("expected at least %d argument(s), got %d", n, len(p.args))
	}
	return nil
}

func (p parser) int(s, what string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, p.fail("invalid %s %q", what, s)
	}
	return n, nil
}

func (p parser) parse(kind Kind) (Command, error) {
	cmd := Command{Kind: kind}
	var err error
	switch kind {
	case KindGo:
		if err := p.want(1); err != nil {
			return cmd, err
		}
		cmd.Token = p.args[0]
	case KindOpen:
		if err := p.want(1); err != nil {
			return cmd, err
		}
		if cmd.RecID, err = p.int(p.args[0], "record id"); err != nil {
			return cmd, err
		}
		if cmd.RecID <= 0 {
			return cmd, p.fail("record id must be positive")
		}
	case KindEdit:
		if err := p.atLeast(4); err != nil {
			return cmd, err
		}
		cmd.Tag = p.args[0]
		if cmd.FieldNumber, err = p.int(p.args[1], "field number"); err != nil {
			return cmd, err
		}
		if p.args[2] == "-" {
			cmd.Index = record.NoSubfield
		} else if cmd.Index, err = p.int(p.args[2], "subfield index"); err != nil {
			return cmd, err
		}
		cmd.Value = strings.Join(p.args[3:], " ")
	case KindAdd:
		if len(p.args) > 0 && p.args[0] == "--partial" {
			cmd.AcceptPartial = true
			p.args = p.args[1:]
		}
		if err := p.atLeast(3); err != nil {
			return cmd, err
		}
		cmd.Tag = p.args[0]
		if cmd.FieldNumber, err = p.int(p.args[1], "field number"); err != nil {
			return cmd, err
		}
		cmd.Subfields = parseRows(p.args[2:])
	case KindAddField:
		if err := p.atLeast(2); err != nil {
			return cmd, err
		}
		cmd.Tag = p.args[0]
		if v, ok := strings.CutPrefix(p.args[1], "="); ok {
			cmd.Field = model.ControlField(strings.Join(append([]string{v}, p.args[2:]...), " "))
			break
		}
		if len(p.args[1]) != 2 {
			return cmd, p.fail("indicators must be two characters, got %q", p.args[1])
		}
		cmd.Field = model.DataField(indicator(p.args[1][0:1]), indicator(p.args[1][1:2]), parseRows(p.args[2:])...)
	case KindMove:
		if err := p.want(4); err != nil {
			return cmd, err
		}
		cmd.Tag = p.args[0]
		if cmd.FieldNumber, err = p.int(p.args[1], "field number"); err != nil {
			return cmd, err
		}
		if cmd.From, err = p.int(p.args[2], "subfield index"); err != nil {
			return cmd, err
		}
		if cmd.To, err = p.int(p.args[3], "subfield index"); err != nil {
			return cmd, err
		}
	case KindDelete:
		if len(p.args) == 0 || len(p.args)%2 != 0 {
			return cmd, p.fail("expected <tag> <n>[:indexes] pairs")
		}
		for i := 0; i < len(p.args); i += 2 {
			if cmd.Plan, err = p.deletion(cmd.Plan, p.args[i], p.args[i+1]); err != nil {
				return cmd, err
			}
		}
	case KindSubmit, KindCancel, KindDeleteRecord, KindBack, KindForward, KindWait:
		if err := p.want(0); err != nil {
			return cmd, err
		}
	default:
		return cmd, p.fail("unknown command %q", kind)
	}
	return cmd, nil
}

func (p parser) deletion(plan model.DeletionPlan, tag, target string) (model.DeletionPlan, error) {
	num, idxs, hasIdx := strings.Cut(target, ":")
	n, err := p.int(num, "field number")
	if err != nil {
		return plan, err
	}
	if !hasIdx {
		return plan.AddField(tag, n), nil
	}
	for _, s := range strings.Split(idxs, ",") {
		i, err := p.int(strings.TrimSpace(s), "subfield index")
		if err != nil {
			return plan, err
		}
		plan = plan.AddSubfield(tag, n, i)
	}
	return plan, nil
}

// parseRows turns code=value arguments into subfield rows. Malformed rows are
// kept with an empty code so the session reports them as invalid input.
func parseRows(args []string) []model.Subfield {
	rows := make([]model.Subfield, 0, len(args))
	for _, a := range args {
		code, value, ok := strings.Cut(a, "=")
		if !ok {
			rows = append(rows, model.Subfield{Value: a})
			continue
		}
		rows = append(rows, model.Subfield{Code: code, Value: value})
	}
	return rows
}

func indicator(s string) string {
	if s == "_" || s == "-" || s == "#" {
		return " "
	}
	return s
}

// ErrUnknownKind is returned by Exec for commands it cannot run on a session.
var ErrUnknownKind = errors.New("command: not a session command")
