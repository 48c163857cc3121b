/*
Package mock defines some simple helper functions for faking the SSSD nss
responder.

It exists solely for testing other parts of the sssnss stack. It is in its own
package so that it can be imported by tests in multiple different packages.
*/
package mock

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const (
	headerSize = 16

	cmdGetVersion uint32 = 0x0001
)

// Request is a request the Responder received.
type Request struct {
	Cmd     uint32
	Payload []byte
}

// Response is how the Responder answers one request.
type Response struct {
	// Status is sent in the reply header; a non-zero status is the errno of
	// a failed request.
	Status uint32
	Body   []byte

	// Delay postpones the reply.
	Delay time.Duration
	// Hangup closes the connection instead of replying.
	Hangup bool
}

// Handler computes the response to one request.
type Handler func(req Request) Response

// Responder is a fake nss responder. It consists of a unix socket server in
// a temporary directory that accepts any number of connections. It reads
// requests from them and answers each with the Response its Handler returns.
//
// GET_VERSION requests are answered by the Responder itself, see SetVersion.
//
// When running tests with one of these, it is strongly recommended to specify
// a timeout to `go test` so that if the responder hangs waiting for a
// request, the test panics.
type Responder struct {
	path     string
	listener net.Listener
	handler  Handler
	t        testing.TB

	lock          sync.Mutex
	conns         map[net.Conn]struct{}
	requests      []Request
	accepted      int
	version       uint32
	handleVersion bool

	wg sync.WaitGroup
}

// NewResponder launches a fake nss responder. It takes a testing.TB as
// provided by the test framework and the handler that answers requests. If
// an error occurs it is simply logged to the testing.TB and the connection
// is dropped. The responder is closed when the test ends.
func NewResponder(t testing.TB, handler Handler) *Responder {
	r := &Responder{
		version: 1,
		path:    filepath.Join(t.TempDir(), "nss"),
		handler: handler,
		t:       t,
		conns:   make(map[net.Conn]struct{}),
	}

	var err error
	r.listener, err = net.Listen("unix", r.path)
	if err != nil {
		t.Fatal(err)
	}

	r.wg.Add(1)
	go r.serverLoop()
	t.Cleanup(r.Close)

	return r
}

// Path is the socket path the responder is listening on.
func (r *Responder) Path() string {
	return r.path
}

// SetVersion sets the protocol version GET_VERSION is answered with
// (default 1).
func (r *Responder) SetVersion(version uint32) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.version = version
}

// HandleVersion passes GET_VERSION requests to the handler instead of
// answering them directly.
func (r *Responder) HandleVersion() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.handleVersion = true
}

// Requests returns the requests passed to the handler so far.
func (r *Responder) Requests() []Request {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Request(nil), r.requests...)
}

// Accepted returns the number of connections accepted so far.
func (r *Responder) Accepted() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.accepted
}

// DropConnections closes every open connection, as a restarting daemon would.
func (r *Responder) DropConnections() {
	r.lock.Lock()
	defer r.lock.Unlock()
	for conn := range r.conns {
		conn.Close()
	}
}

// Close stops the listener, drops every connection and waits for the
// connection handlers to exit. It may be called more than once.
func (r *Responder) Close() {
	r.listener.Close()
	r.DropConnections()
	r.wg.Wait()
}

func (r *Responder) serverLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				r.t.Error(err)
			}
			return
		}

		r.lock.Lock()
		r.conns[conn] = struct{}{}
		r.accepted++
		r.lock.Unlock()

		r.wg.Add(1)
		go r.handle(conn)
	}
}

func (r *Responder) handle(conn net.Conn) {
	defer r.wg.Done()
	defer func() {
		r.lock.Lock()
		delete(r.conns, conn)
		r.lock.Unlock()
		conn.Close()
	}()

	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			// a closed connection is how every client says goodbye
			return
		}
		length := binary.NativeEndian.Uint32(header)
		cmd := binary.NativeEndian.Uint32(header[4:])
		if length < headerSize {
			r.t.Errorf("request length %d is shorter than its header", length)
			return
		}
		payload := make([]byte, length-headerSize)
		if _, err := io.ReadFull(conn, payload); err != nil {
			r.t.Error(err)
			return
		}

		req := Request{Cmd: cmd, Payload: payload}
		var res Response
		r.lock.Lock()
		direct := cmd == cmdGetVersion && !r.handleVersion
		if direct {
			res.Body = binary.NativeEndian.AppendUint32(nil, r.version)
		} else {
			r.requests = append(r.requests, req)
		}
		r.lock.Unlock()
		if !direct {
			res = r.handler(req)
		}

		if res.Delay > 0 {
			time.Sleep(res.Delay)
		}
		if res.Hangup {
			return
		}

		reply := make([]byte, headerSize, headerSize+len(res.Body))
		binary.NativeEndian.PutUint32(reply, uint32(headerSize+len(res.Body)))
		binary.NativeEndian.PutUint32(reply[4:], cmd)
		binary.NativeEndian.PutUint32(reply[8:], res.Status)
		reply = append(reply, res.Body...)
		if _, err := conn.Write(reply); err != nil {
			// the client may have given up waiting
			return
		}
	}
}
