package mocks

import (
	"bytes"
	"context"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/eapache/queue"

	"github.com/sssctl/sssnss"
)

// Channel implements sssnss.Channel for testing purposes. Every call to Call
// consumes the oldest expectation set with ExpectCall and answers with the
// body or error configured on it.
//
// Channel also keeps track of the replies it hands out, so a test can check
// that the code under test released every one of them.
type Channel struct {
	l            sync.Mutex
	t            ErrorReporter
	expectations *queue.Queue
	outstanding  int
	calls        int
	closed       bool
}

// CallExpectation describes how the mock answers one Call.
type CallExpectation struct {
	cmd          sssnss.Command
	payload      []byte
	matchPayload bool
	body         []byte
	err          error
}

// NewChannel instantiates a new Channel mock. The t argument should be the
// *testing.T instance of your test method. An error will be written to it if
// an expectation is violated.
func NewChannel(t ErrorReporter) *Channel {
	return &Channel{
		t:            t,
		expectations: queue.New(),
	}
}

// ExpectCall queues an expectation for a request with the given command. By
// default it is answered with an empty body.
func (c *Channel) ExpectCall(cmd sssnss.Command) *CallExpectation {
	c.l.Lock()
	defer c.l.Unlock()

	e := &CallExpectation{cmd: cmd}
	c.expectations.Add(e)
	return e
}

// MatchPayload makes the expectation fail the test unless the request payload
// is exactly p.
func (e *CallExpectation) MatchPayload(p []byte) *CallExpectation {
	e.payload = p
	e.matchPayload = true
	return e
}

// ReturnBody sets the reply body the call is answered with.
func (e *CallExpectation) ReturnBody(b []byte) *CallExpectation {
	e.body = b
	return e
}

// ReturnError makes the call fail with err instead of returning a reply.
func (e *CallExpectation) ReturnError(err error) *CallExpectation {
	e.err = err
	return e
}

// Call implements sssnss.Channel.
func (c *Channel) Call(ctx context.Context, cmd sssnss.Command, payload []byte) (*sssnss.Reply, error) {
	c.l.Lock()
	defer c.l.Unlock()

	c.calls++
	if c.closed {
		c.t.Errorf("Call %s on a closed mock channel", cmd)
		return nil, sssnss.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.expectations.Length() == 0 {
		c.t.Errorf("No more expectation set on this mock channel to handle %s.", cmd)
		return nil, errOutOfExpectations
	}

	e := c.expectations.Remove().(*CallExpectation)
	if e.cmd != cmd {
		c.t.Errorf("Expected a %s request, got %s", e.cmd, cmd)
		return nil, errCommandMismatch
	}
	if e.matchPayload && !bytes.Equal(e.payload, payload) {
		c.t.Errorf("Payload of %s did not match.\nexpected:\n%s\nactual:\n%s", cmd, spew.Sdump(e.payload), spew.Sdump(payload))
		return nil, errPayloadMismatch
	}
	if e.err != nil {
		return nil, e.err
	}

	// the reply gets its own copy; the code under test may hold on to it
	body := append([]byte(nil), e.body...)
	c.outstanding++
	return sssnss.NewReply(body, c.released), nil
}

func (c *Channel) released() {
	c.l.Lock()
	defer c.l.Unlock()
	c.outstanding--
}

// Outstanding returns the number of replies handed out and not yet released.
func (c *Channel) Outstanding() int {
	c.l.Lock()
	defer c.l.Unlock()
	return c.outstanding
}

// Calls returns the number of calls made so far.
func (c *Channel) Calls() int {
	c.l.Lock()
	defer c.l.Unlock()
	return c.calls
}

// Close implements sssnss.Channel. By closing the mock you also tell it that
// no more calls will follow, so it writes an error to the test state if any
// expectation is left.
func (c *Channel) Close() error {
	c.l.Lock()
	defer c.l.Unlock()

	c.closed = true
	c.reportUnmet()
	return nil
}

// Finish reports unmet expectations and replies that were never released,
// without closing the mock. Use it when the code under test owns the close.
func (c *Channel) Finish() {
	c.l.Lock()
	defer c.l.Unlock()

	c.reportUnmet()
	if c.outstanding > 0 {
		c.t.Errorf("%d replies were never released", c.outstanding)
	}
}

func (c *Channel) reportUnmet() {
	for c.expectations.Length() > 0 {
		e := c.expectations.Remove().(*CallExpectation)
		c.t.Errorf("Expected to receive a %s request, but never did", e.cmd)
	}
}
