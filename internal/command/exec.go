package command

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"bibedit-cli/internal/engine"
)

// Exec applies cmd to s. It must run on the goroutine that owns s. Wait is
// not a session command; Run handles it.
func Exec(s *engine.Session, cmd Command) error {
	switch cmd.Kind {
	case KindNone:
		return nil
	case KindGo:
		s.Navigate(cmd.Token)
		return nil
	case KindOpen:
		s.Open(cmd.RecID)
		return nil
	case KindBack:
		s.Back()
		return nil
	case KindForward:
		s.Forward()
		return nil
	case KindEdit:
		return s.EditContent(cmd.Tag, cmd.FieldNumber, cmd.Index, cmd.Value)
	case KindAdd:
		_, err := s.AddSubfieldRows(cmd.Tag, cmd.FieldNumber, cmd.Subfields, cmd.AcceptPartial)
		return err
	case KindAddField:
		_, err := s.AddField(cmd.Tag, cmd.Field)
		return err
	case KindMove:
		return s.MoveSubfield(cmd.Tag, cmd.FieldNumber, cmd.From, cmd.To)
	case KindDelete:
		return s.DeleteFields(cmd.Plan)
	case KindSubmit:
		return s.Submit()
	case KindCancel:
		return s.CancelEdit()
	case KindDeleteRecord:
		return s.DeleteRecord()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, cmd.Kind)
	}
}

// Run executes a script line by line on loop, stopping at the first error.
// A wait line blocks until every request sent so far has been answered.
func Run(ctx context.Context, loop *engine.Loop, r io.Reader) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		cmd, err := Parse(sc.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if cmd.Kind == KindWait {
			err = loop.WaitIdle(ctx)
		} else if cmd.Kind != KindNone {
			err = loop.Call(ctx, func(s *engine.Session) error { return Exec(s, cmd) })
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return sc.Err()
}
