package sssnss

import (
	"context"
	"sync"

	pool "github.com/libp2p/go-buffer-pool"
)

// Channel sends one request to the daemon and waits for its reply.
//
// Call returns the reply body, without the packet header. A daemon-side
// failure is returned as an error and no Reply; on success the caller owns
// the Reply and must Release it. Commands that carry no reply data (SETGRENT,
// ENDGRENT) still return an empty Reply.
type Channel interface {
	Call(ctx context.Context, cmd Command, payload []byte) (*Reply, error)
	Close() error
}

// Reply is a raw reply body. It is owned by exactly one component at a time
// and must not be read after Release.
type Reply struct {
	mu        sync.Mutex
	buf       []byte
	pooled    bool
	released  bool
	onRelease func()
}

// NewReply wraps body as a Reply. onRelease, if not nil, runs once when the
// Reply is released; channel implementations use it for accounting.
func NewReply(body []byte, onRelease func()) *Reply {
	return &Reply{buf: body, onRelease: onRelease}
}

// newPooledReply returns a Reply of n bytes drawn from the shared buffer pool.
func newPooledReply(n int) *Reply {
	return &Reply{buf: pool.Get(n), pooled: true}
}

// Bytes returns the reply body, or nil once released.
func (r *Reply) Bytes() []byte {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	return r.buf
}

// Len returns the length of the reply body.
func (r *Reply) Len() int {
	return len(r.Bytes())
}

// Release gives the reply's memory back. Calling it more than once is a no-op.
func (r *Reply) Release() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	buf, pooled, hook := r.buf, r.pooled, r.onRelease
	r.buf = nil
	r.mu.Unlock()

	if pooled {
		pool.Put(buf)
	}
	if hook != nil {
		hook()
	}
}
