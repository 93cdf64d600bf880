package engine

import (
	"context"
	"time"

	"bibedit-cli/internal/nav"
	"bibedit-cli/internal/syncproto"
)

// Loop serializes everything that touches a Session onto one goroutine: queued
// calls, navigation poll ticks and request outcomes.
type Loop struct {
	session  *Session
	outcomes <-chan syncproto.Outcome
	poller   *nav.Poller
	calls    chan func(*Session)
}

func NewLoop(s *Session, outcomes <-chan syncproto.Outcome, poller *nav.Poller) *Loop {
	return &Loop{
		session:  s,
		outcomes: outcomes,
		poller:   poller,
		calls:    make(chan func(*Session)),
	}
}

// Run processes events until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.poller.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.calls:
			fn(l.session)
		case o := <-l.outcomes:
			l.session.HandleOutcome(o)
		case <-l.poller.C():
			l.session.Poll()
			l.poller.Rearm()
		}
	}
}

// Do queues fn and returns without waiting for it to run.
func (l *Loop) Do(ctx context.Context, fn func(*Session)) {
	go func() {
		select {
		case l.calls <- fn:
		case <-ctx.Done():
		}
	}()
}

// Call runs fn on the loop and waits for its result.
func (l *Loop) Call(ctx context.Context, fn func(*Session) error) error {
	done := make(chan error, 1)
	wrapped := func(s *Session) { done <- fn(s) }
	select {
	case l.calls <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitIdle blocks until the session has no unanswered requests.
func (l *Loop) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		idle := false
		if err := l.Call(ctx, func(s *Session) error {
			idle = s.Idle()
			return nil
		}); err != nil {
			return err
		}
		if idle {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
