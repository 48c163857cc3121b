package sssnss

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sssctl/sssnss/mock"
)

func newTestChannel(t *testing.T, handler mock.Handler) (*unixChannel, *mock.Responder) {
	t.Helper()
	useTestLogger(t)

	responder := mock.NewResponder(t, handler)
	conf := NewTestConfig()
	conf.Net.SocketPath = responder.Path()
	conf.Net.ReadTimeout = 5 * time.Second

	ch := newUnixChannel(conf)
	t.Cleanup(func() { _ = ch.Close() })
	return ch, responder
}

func echoName(req mock.Request) mock.Response {
	return mock.Response{Body: append([]byte("reply:"), req.Payload...)}
}

func TestUnixChannelCall(t *testing.T) {
	ch, responder := newTestChannel(t, echoName)

	reply, err := ch.Call(context.Background(), CmdGetGrNam, []byte("wheel\x00"))
	require.NoError(t, err)
	assert.Equal(t, []byte("reply:wheel\x00"), reply.Bytes())
	reply.Release()
	assert.Nil(t, reply.Bytes())

	reqs := responder.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, uint32(CmdGetGrNam), reqs[0].Cmd)
	assert.Equal(t, []byte("wheel\x00"), reqs[0].Payload)

	rate := ch.registry.Get(getMetricNameForCommand(metricRequestRate, CmdGetGrNam)).(metrics.Meter)
	assert.Equal(t, int64(1), rate.Count())
	assert.Equal(t, int64(1), metrics.GetOrRegisterMeter(metricReconnectRate, ch.registry).Count())
}

func TestUnixChannelReusesConnection(t *testing.T) {
	ch, responder := newTestChannel(t, func(req mock.Request) mock.Response {
		return mock.Response{}
	})

	for i := 0; i < 3; i++ {
		reply, err := ch.Call(context.Background(), CmdSetGrEnt, nil)
		require.NoError(t, err)
		assert.Zero(t, reply.Len())
		reply.Release()
	}
	assert.Equal(t, 1, responder.Accepted())
}

func TestUnixChannelStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     syscall.Errno
		wantStatus Status
		wantErr    error
	}{
		{"no such entry", syscall.ENOENT, StatusNotFound, ErrNotFound},
		{"daemon failure", syscall.EIO, StatusUnavail, syscall.EIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, _ := newTestChannel(t, func(req mock.Request) mock.Response {
				return mock.Response{Status: uint32(tt.status)}
			})

			reply, err := ch.Call(context.Background(), CmdGetGrGid, binary.NativeEndian.AppendUint64(nil, 10))
			assert.Nil(t, reply)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStatus, StatusOf(err))
			assert.Equal(t, tt.status, ErrnoOf(err))
		})
	}
}

func TestUnixChannelVersionMismatch(t *testing.T) {
	ch, responder := newTestChannel(t, echoName)
	responder.SetVersion(2)

	_, err := ch.Call(context.Background(), CmdSetGrEnt, nil)
	assert.ErrorIs(t, err, ErrBadProtocolVersion)
	assert.Equal(t, syscall.EBADMSG, ErrnoOf(err))
	assert.Empty(t, responder.Requests(), "request sent before the handshake succeeded")
}

func TestUnixChannelReconnects(t *testing.T) {
	ch, responder := newTestChannel(t, echoName)

	reply, err := ch.Call(context.Background(), CmdSetGrEnt, nil)
	require.NoError(t, err)
	reply.Release()

	responder.DropConnections()

	reply, err = ch.Call(context.Background(), CmdGetGrNam, []byte("audio\x00"))
	require.NoError(t, err)
	assert.Equal(t, []byte("reply:audio\x00"), reply.Bytes())
	reply.Release()
	assert.Equal(t, 2, responder.Accepted())
}

func TestUnixChannelHangupOnFreshConnection(t *testing.T) {
	ch, _ := newTestChannel(t, func(req mock.Request) mock.Response {
		return mock.Response{Hangup: true}
	})

	_, err := ch.Call(context.Background(), CmdGetGrNam, []byte("wheel\x00"))
	assert.Error(t, err)
	assert.Equal(t, StatusUnavail, StatusOf(err))
}

func TestUnixChannelMissingSocket(t *testing.T) {
	useTestLogger(t)
	conf := NewTestConfig()
	conf.Net.SocketPath = filepath.Join(t.TempDir(), "missing")
	conf.Net.Retry.Max = 2
	conf.Net.Breaker.ErrorThreshold = 1
	ch := newUnixChannel(conf)
	defer ch.Close()

	_, err := ch.Call(context.Background(), CmdSetGrEnt, nil)
	assert.ErrorIs(t, err, syscall.ENOENT)
	assert.Equal(t, StatusUnavail, StatusOf(err))
	assert.NotErrorIs(t, err, ErrNotFound, "a missing socket is not a missing group")

	// the breaker is now open and fails fast
	_, err = ch.Call(context.Background(), CmdSetGrEnt, nil)
	assert.Equal(t, syscall.EAGAIN, ErrnoOf(err))
}

func TestUnixChannelDeadline(t *testing.T) {
	ch, _ := newTestChannel(t, func(req mock.Request) mock.Response {
		return mock.Response{Delay: 200 * time.Millisecond}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ch.Call(ctx, CmdGetGrNam, []byte("slow\x00"))
	assert.Equal(t, StatusUnavail, StatusOf(err))
	assert.Equal(t, syscall.ETIMEDOUT, ErrnoOf(err))
}

func TestUnixChannelClose(t *testing.T) {
	ch, _ := newTestChannel(t, echoName)

	reply, err := ch.Call(context.Background(), CmdSetGrEnt, nil)
	require.NoError(t, err)
	reply.Release()

	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.Close(), ErrClosed)

	_, err = ch.Call(context.Background(), CmdSetGrEnt, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTransportError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		errno syscall.Errno
	}{
		{"canceled", context.Canceled, syscall.EINTR},
		{"deadline", context.DeadlineExceeded, syscall.ETIMEDOUT},
		{"not root", ErrNotRoot, syscall.EACCES},
		{"garbage", PacketDecodingError{"bad header"}, syscall.EBADMSG},
		{"errno", syscall.ECONNRESET, syscall.ECONNRESET},
		{"other", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := transportError(CmdGetGrEnt, tt.err)
			assert.Equal(t, tt.errno, ErrnoOf(err))
			assert.Equal(t, StatusUnavail, StatusOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
