// Package tui is the interactive record editor.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"bibedit-cli/internal/engine"
	"bibedit-cli/internal/nav"
	"bibedit-cli/internal/syncproto"
	"bibedit-cli/internal/tagfmt"
)

type Options struct {
	Client    *syncproto.Client
	Location  *nav.Location
	Poller    *nav.Poller
	Session   engine.Options
	Formatter *tagfmt.Formatter
	Logger    zerolog.Logger
}

// Run starts the editor and blocks until the operator quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	if opts.Client == nil || opts.Location == nil || opts.Poller == nil {
		return errors.New("tui: missing client, location or poller")
	}
	applyColorProfilePreference()
	applyThemePreference()
	defer opts.Poller.Stop()

	scr := &screen{}
	session := engine.NewSession(scr, opts.Client, opts.Location, opts.Session)
	m := newModel(session, scr, opts.Client.Outcomes(), opts.Poller, opts.Formatter, opts.Logger)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
