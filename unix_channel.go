package sssnss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/rcrowley/go-metrics"
)

// unixChannel is the Channel to the nss responder's unix socket. It keeps one
// connection open and serializes requests on it.
type unixChannel struct {
	conf *Config

	lock    sync.Mutex
	conn    net.Conn
	closed  bool
	breaker *breaker.Breaker

	requestRate    metrics.Meter
	requestLatency metrics.Histogram
	replySize      metrics.Histogram
	reconnectRate  metrics.Meter
	registry       metrics.Registry
}

func newUnixChannel(conf *Config) *unixChannel {
	r := conf.MetricRegistry
	return &unixChannel{
		conf:           conf,
		breaker:        breaker.New(conf.Net.Breaker.ErrorThreshold, conf.Net.Breaker.SuccessThreshold, conf.Net.Breaker.Timeout),
		requestRate:    metrics.GetOrRegisterMeter(metricRequestRate, r),
		requestLatency: getOrRegisterHistogram(metricRequestLatency, r),
		replySize:      getOrRegisterHistogram(metricReplySize, r),
		reconnectRate:  metrics.GetOrRegisterMeter(metricReconnectRate, r),
		registry:       r,
	}
}

// transientClassifier retries connection attempts that may succeed once the
// daemon has (re)started: a missing socket, a refused connection, or an
// interrupted call.
type transientClassifier struct{}

func (transientClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case errors.Is(err, syscall.ENOENT),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EAGAIN),
		errors.Is(err, syscall.EINTR):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

// Call implements Channel.
func (uc *unixChannel) Call(ctx context.Context, cmd Command, payload []byte) (*Reply, error) {
	uc.lock.Lock()
	defer uc.lock.Unlock()

	if uc.closed {
		return nil, &Error{Op: cmd.String(), Status: StatusUnavail, Err: ErrClosed}
	}

	start := time.Now()
	var (
		reply  *Reply
		status uint32
	)
	err := uc.breaker.Run(func() (err error) {
		reply, status, err = uc.roundTrip(ctx, cmd, payload)
		return err
	})
	if err != nil {
		return nil, transportError(cmd, err)
	}

	uc.requestRate.Mark(1)
	getOrRegisterCommandMeter(metricRequestRate, cmd, uc.registry).Mark(1)
	uc.requestLatency.Update(time.Since(start).Milliseconds())

	if status != 0 {
		return nil, statusError(cmd, status)
	}
	uc.replySize.Update(int64(reply.Len()))
	return reply, nil
}

// roundTrip sends one request and reads its reply, connecting first when
// needed. A connection the daemon dropped while idle is replaced once.
func (uc *unixChannel) roundTrip(ctx context.Context, cmd Command, payload []byte) (*Reply, uint32, error) {
	fresh := uc.conn == nil
	if fresh {
		if err := uc.connect(ctx); err != nil {
			return nil, 0, err
		}
	}

	reply, status, err := uc.exchange(ctx, cmd, payload)
	if err == nil {
		return reply, status, nil
	}
	uc.dropConn()
	if fresh || !isStaleConnError(err) || ctx.Err() != nil {
		return nil, 0, err
	}

	Logger.Printf("channel/%s connection went away (%v), reconnecting\n", uc.conf.Net.SocketPath, err)
	if err := uc.connect(ctx); err != nil {
		return nil, 0, err
	}
	reply, status, err = uc.exchange(ctx, cmd, payload)
	if err != nil {
		uc.dropConn()
		return nil, 0, err
	}
	return reply, status, nil
}

func isStaleConnError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// connect dials the socket with retries and checks who is on the other side.
func (uc *unixChannel) connect(ctx context.Context) error {
	r := retrier.New(retrier.ConstantBackoff(uc.conf.Net.Retry.Max, uc.conf.Net.Retry.Backoff), transientClassifier{})
	err := r.Run(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return uc.dial(ctx)
	})
	if err != nil {
		Logger.Printf("channel/%s could not connect: %v\n", uc.conf.Net.SocketPath, err)
		return err
	}
	uc.reconnectRate.Mark(1)
	return nil
}

func (uc *unixChannel) dial(ctx context.Context) error {
	path := uc.conf.Net.SocketPath
	if uc.conf.Net.RequireRootOwner {
		if err := checkSocketOwner(path); err != nil {
			return err
		}
	}

	dialer := net.Dialer{Timeout: uc.conf.Net.DialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return err
	}

	if uc.conf.Net.RequireRootOwner {
		if err := checkPeerOwner(conn); err != nil {
			conn.Close()
			return err
		}
	}

	uc.conn = conn
	if err := uc.handshake(ctx); err != nil {
		uc.dropConn()
		return err
	}

	Logger.Printf("channel/%s connected\n", path)
	return nil
}

// handshake makes sure the daemon speaks ProtocolVersion.
func (uc *unixChannel) handshake(ctx context.Context) error {
	payload, err := encode(&versionRequest{Version: ProtocolVersion})
	if err != nil {
		return err
	}
	reply, status, err := uc.exchange(ctx, CmdGetVersion, payload)
	if err != nil {
		return err
	}
	defer reply.Release()
	if status != 0 {
		return statusError(CmdGetVersion, status)
	}

	var res versionResponse
	if err := decode(reply.Bytes(), &res, true); err != nil {
		return err
	}
	if res.Version != ProtocolVersion {
		return fmt.Errorf("%w: daemon speaks %d, want %d", ErrBadProtocolVersion, res.Version, ProtocolVersion)
	}
	return nil
}

// exchange writes one request and reads one reply on the current
// connection. The returned status is the daemon's errno for the request; a
// non-zero status comes with a nil Reply.
func (uc *unixChannel) exchange(ctx context.Context, cmd Command, payload []byte) (*Reply, uint32, error) {
	conn := uc.conn

	// interrupt blocking I/O when ctx ends
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	buf, err := encode(&request{cmd: cmd, body: payload})
	if err != nil {
		return nil, 0, err
	}

	if err := conn.SetWriteDeadline(uc.deadline(ctx, uc.conf.Net.WriteTimeout)); err != nil {
		return nil, 0, err
	}
	if _, err := conn.Write(buf); err != nil {
		return nil, 0, err
	}

	if err := conn.SetReadDeadline(uc.deadline(ctx, uc.conf.Net.ReadTimeout)); err != nil {
		return nil, 0, err
	}
	header := make([]byte, packetHeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, 0, err
	}
	var h responseHeader
	if err := decode(header, &h, true); err != nil {
		return nil, 0, err
	}
	if h.cmd != cmd {
		return nil, 0, PacketDecodingError{fmt.Sprintf("reply for %s while waiting for %s", h.cmd, cmd)}
	}

	reply := newPooledReply(int(h.length) - packetHeaderSize)
	if _, err := io.ReadFull(conn, reply.buf); err != nil {
		reply.Release()
		return nil, 0, err
	}
	if h.status != 0 {
		reply.Release()
		return nil, h.status, nil
	}
	return reply, 0, nil
}

func (uc *unixChannel) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

func (uc *unixChannel) dropConn() {
	if uc.conn == nil {
		return
	}
	if err := uc.conn.Close(); err != nil {
		Logger.Printf("channel/%s error closing connection: %v\n", uc.conf.Net.SocketPath, err)
	}
	uc.conn = nil
}

// Close implements Channel.
func (uc *unixChannel) Close() error {
	uc.lock.Lock()
	defer uc.lock.Unlock()

	if uc.closed {
		return ErrClosed
	}
	uc.closed = true

	if uc.conn == nil {
		return nil
	}
	err := uc.conn.Close()
	uc.conn = nil
	return err
}

// statusError turns a non-zero daemon status into the error a caller sees.
// ENOENT is how the daemon says "no such entry".
func statusError(cmd Command, status uint32) error {
	errno := syscall.Errno(status)
	if errno == syscall.ENOENT {
		return &Error{Op: cmd.String(), Status: StatusNotFound, Errno: errno, Err: ErrNotFound}
	}
	return &Error{Op: cmd.String(), Status: StatusUnavail, Errno: errno, Err: fmt.Errorf("daemon returned status %d", status)}
}

func transportError(cmd Command, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	result := &Error{Op: cmd.String(), Status: StatusUnavail, Err: err}
	var errno syscall.Errno
	switch {
	case errors.As(err, &errno):
		result.Errno = errno
	case errors.Is(err, breaker.ErrBreakerOpen):
		result.Errno = syscall.EAGAIN
	case errors.Is(err, ErrNotRoot):
		result.Errno = syscall.EACCES
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrBadProtocolVersion):
		result.Errno = syscall.EBADMSG
	case errors.Is(err, context.Canceled):
		result.Errno = syscall.EINTR
	case errors.Is(err, context.DeadlineExceeded):
		result.Errno = syscall.ETIMEDOUT
	}
	var netErr net.Error
	if result.Errno == 0 && errors.As(err, &netErr) && netErr.Timeout() {
		result.Errno = syscall.ETIMEDOUT
	}
	return result
}
