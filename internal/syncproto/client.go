package syncproto

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Transport delivers one request and returns the service's answer. Retries and
// timeouts belong to the transport.
type Transport interface {
	RoundTrip(ctx context.Context, req Request) (Response, error)
}

// Outcome is the result of one transaction. Err is set when the transport
// failed; otherwise Response holds the service's answer.
type Outcome struct {
	Request  Request
	Response Response
	Err      error
}

// Rejected reports whether the service refused the session.
func (o Outcome) Rejected() bool {
	return o.Err == nil && o.Response.ResultText == SessionExpired
}

// RejectionErr returns a RejectionError for rejected outcomes, else nil.
func (o Outcome) RejectionErr() error {
	if !o.Rejected() {
		return nil
	}
	return RejectionError{RecID: o.Request.RecID, Text: o.Response.ResultText}
}

type PendingTransaction struct {
	ID      int64
	Request Request
}

// Client numbers requests and dispatches each one on its own goroutine.
type Client struct {
	ctx       context.Context
	transport Transport
	log       zerolog.Logger

	mu       sync.Mutex
	lastID   int64
	pending  map[int64]Request
	outcomes chan Outcome
}

// NewClient returns a client whose in-flight requests live as long as ctx.
func NewClient(ctx context.Context, t Transport, logger zerolog.Logger) *Client {
	return &Client{
		ctx:       ctx,
		transport: t,
		log:       logger,
		pending:   map[int64]Request{},
		outcomes:  make(chan Outcome, 64),
	}
}

// Send assigns the next transaction ID, records the request as pending and
// returns immediately.
func (c *Client) Send(req Request) int64 {
	c.mu.Lock()
	c.lastID++
	req.ID = c.lastID
	c.pending[req.ID] = req
	c.mu.Unlock()

	c.log.Debug().Int64("txn", req.ID).Int("recid", req.RecID).Str("type", string(req.RequestType)).Msg("send")
	go c.dispatch(req)
	return req.ID
}

func (c *Client) dispatch(req Request) {
	resp, err := c.transport.RoundTrip(c.ctx, req)

	c.mu.Lock()
	delete(c.pending, req.ID)
	c.mu.Unlock()

	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Int64("txn", req.ID).Str("type", string(req.RequestType)).Str("result", resp.ResultText).Msg("outcome")

	select {
	case c.outcomes <- Outcome{Request: req, Response: resp, Err: err}:
	case <-c.ctx.Done():
	}
}

// Outcomes delivers results in completion order.
func (c *Client) Outcomes() <-chan Outcome { return c.outcomes }

// Pending lists outstanding transactions by ID.
func (c *Client) Pending() []PendingTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingTransaction, 0, len(c.pending))
	for id, req := range c.pending {
		out = append(out, PendingTransaction{ID: id, Request: req})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LastID returns the most recently issued transaction ID (0 before any send).
func (c *Client) LastID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastID
}
