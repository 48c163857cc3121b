package sssnss_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sssctl/sssnss"
	"github.com/sssctl/sssnss/mocks"
)

var (
	wheel = mocks.NewGroupRecord(10, "wheel", "x", "root", "alice")
	audio = mocks.NewGroupRecord(63, "audio", "x", "pulse")
	users = mocks.NewGroupRecord(100, "users", "*")
)

func newMockClient(t *testing.T) (*sssnss.Client, *mocks.Channel) {
	t.Helper()
	ch := mocks.NewChannel(t)
	client, err := sssnss.NewClientWithChannel(ch, mocks.NewTestConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		if !client.Closed() {
			_ = client.Close()
		}
		ch.Finish()
	})
	return client, ch
}

func newArena() *sssnss.Arena {
	return sssnss.NewArena(make([]byte, 1024))
}

func TestClientGetGrNam(t *testing.T) {
	client, ch := newMockClient(t)
	ch.ExpectCall(sssnss.CmdGetGrNam).MatchPayload([]byte("wheel\x00")).ReturnBody(mocks.GroupBatch(wheel))

	group, err := client.GetGrNam(context.Background(), "wheel", newArena())
	require.NoError(t, err)
	assert.Equal(t, sssnss.Gid(10), group.Gid)
	assert.Equal(t, "wheel", group.Name())
	assert.Equal(t, "x", group.Passwd())
	assert.Equal(t, []string{"root", "alice"}, group.Members())
	assert.Zero(t, ch.Outstanding())
}

func TestClientGetGrGid(t *testing.T) {
	client, ch := newMockClient(t)
	ch.ExpectCall(sssnss.CmdGetGrGid).
		MatchPayload(binary.NativeEndian.AppendUint64(nil, 63)).
		ReturnBody(mocks.GroupBatch(audio))

	group, err := client.GetGrGid(context.Background(), 63, newArena())
	require.NoError(t, err)
	assert.Equal(t, "audio:x:63:pulse", group.String())
	assert.Zero(t, ch.Outstanding())
}

func TestClientLookupFailures(t *testing.T) {
	truncated := mocks.GroupBatch(wheel)
	truncated = truncated[:len(truncated)-3]

	tests := []struct {
		name       string
		expect     func(e *mocks.CallExpectation)
		arena      *sssnss.Arena
		wantStatus sssnss.Status
		wantErrno  syscall.Errno
		wantErr    error
	}{
		{
			name:       "no result",
			expect:     func(e *mocks.CallExpectation) { e.ReturnBody(mocks.GroupBatch()) },
			wantStatus: sssnss.StatusNotFound,
			wantErr:    sssnss.ErrNotFound,
		},
		{
			name:       "more than one result",
			expect:     func(e *mocks.CallExpectation) { e.ReturnBody(mocks.GroupBatch(wheel, audio)) },
			wantStatus: sssnss.StatusTryAgain,
			wantErrno:  syscall.EBADMSG,
			wantErr:    sssnss.ErrAmbiguous,
		},
		{
			name:       "truncated record",
			expect:     func(e *mocks.CallExpectation) { e.ReturnBody(truncated) },
			wantStatus: sssnss.StatusTryAgain,
			wantErrno:  syscall.EBADMSG,
			wantErr:    sssnss.ErrMalformed,
		},
		{
			name:       "reply without header",
			expect:     func(e *mocks.CallExpectation) { e.ReturnBody([]byte{1, 0}) },
			wantStatus: sssnss.StatusTryAgain,
			wantErrno:  syscall.EBADMSG,
			wantErr:    sssnss.ErrMalformed,
		},
		{
			name:       "arena too small",
			expect:     func(e *mocks.CallExpectation) { e.ReturnBody(mocks.GroupBatch(wheel)) },
			arena:      sssnss.NewArena(make([]byte, 8)),
			wantStatus: sssnss.StatusTryAgain,
			wantErrno:  syscall.ERANGE,
			wantErr:    sssnss.ErrOutOfSpace,
		},
		{
			name:       "transport failure",
			expect:     func(e *mocks.CallExpectation) { e.ReturnError(syscall.ECONNREFUSED) },
			wantStatus: sssnss.StatusUnavail,
			wantErrno:  syscall.ECONNREFUSED,
			wantErr:    syscall.ECONNREFUSED,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, ch := newMockClient(t)
			tt.expect(ch.ExpectCall(sssnss.CmdGetGrNam))

			arena := tt.arena
			if arena == nil {
				arena = newArena()
			}
			group, err := client.GetGrNam(context.Background(), "wheel", arena)
			assert.Nil(t, group)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStatus, sssnss.StatusOf(err))
			assert.Equal(t, tt.wantErrno, sssnss.ErrnoOf(err))
			assert.Zero(t, ch.Outstanding(), "reply not released")
			assert.Zero(t, arena.Len(), "failed lookup left data in the arena")
		})
	}
}

func TestClientRetryWithLargerArena(t *testing.T) {
	client, ch := newMockClient(t)
	ch.ExpectCall(sssnss.CmdGetGrNam).ReturnBody(mocks.GroupBatch(wheel))
	ch.ExpectCall(sssnss.CmdGetGrNam).ReturnBody(mocks.GroupBatch(wheel))

	_, err := client.GetGrNam(context.Background(), "wheel", sssnss.NewArena(make([]byte, 16)))
	require.ErrorIs(t, err, syscall.ERANGE)

	group, err := client.GetGrNam(context.Background(), "wheel", sssnss.NewArena(make([]byte, 64)))
	require.NoError(t, err)
	assert.Equal(t, "wheel", group.Name())
}

func TestClientRejectsNameWithNUL(t *testing.T) {
	client, ch := newMockClient(t)

	_, err := client.GetGrNam(context.Background(), "wh\x00eel", newArena())
	assert.Equal(t, syscall.EINVAL, sssnss.ErrnoOf(err))
	assert.Equal(t, sssnss.StatusUnavail, sssnss.StatusOf(err))
	assert.Zero(t, ch.Calls())
}

func TestClientDaemonNotFound(t *testing.T) {
	client, ch := newMockClient(t)
	notFound := &sssnss.Error{Op: sssnss.CmdGetGrGid.String(), Status: sssnss.StatusNotFound, Errno: syscall.ENOENT, Err: sssnss.ErrNotFound}
	ch.ExpectCall(sssnss.CmdGetGrGid).ReturnError(notFound)

	_, err := client.GetGrGid(context.Background(), 4242, newArena())
	assert.ErrorIs(t, err, sssnss.ErrNotFound)
	assert.Equal(t, sssnss.StatusNotFound, sssnss.StatusOf(err))
}

func TestClientConcurrentLookups(t *testing.T) {
	client, ch := newMockClient(t)
	const n = 16
	for i := 0; i < n; i++ {
		ch.ExpectCall(sssnss.CmdGetGrNam).ReturnBody(mocks.GroupBatch(wheel))
	}

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			group, err := client.GetGrNam(context.Background(), "wheel", newArena())
			if err != nil {
				return err
			}
			if group.String() != "wheel:x:10:root,alice" {
				return fmt.Errorf("unexpected group %q", group)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Zero(t, ch.Outstanding())
}

func TestClientMetrics(t *testing.T) {
	client, ch := newMockClient(t)
	ch.ExpectCall(sssnss.CmdGetGrNam).ReturnBody(mocks.GroupBatch(wheel))
	ch.ExpectCall(sssnss.CmdGetGrNam).ReturnBody(mocks.GroupBatch(wheel)[:20])

	_, err := client.GetGrNam(context.Background(), "wheel", newArena())
	require.NoError(t, err)
	_, err = client.GetGrNam(context.Background(), "wheel", newArena())
	require.Error(t, err)

	registry := client.Config().MetricRegistry
	assert.Equal(t, int64(1), metrics.GetOrRegisterMeter("records-decoded", registry).Count())
	assert.Equal(t, int64(1), metrics.GetOrRegisterMeter("decode-error-rate", registry).Count())
}

func TestClientClose(t *testing.T) {
	client, _ := newMockClient(t)

	require.NoError(t, client.Close())
	assert.True(t, client.Closed())
	assert.ErrorIs(t, client.Close(), sssnss.ErrClosed)

	_, err := client.GetGrNam(context.Background(), "wheel", newArena())
	assert.ErrorIs(t, err, sssnss.ErrClosed)
	_, err = client.GetGrEnt(context.Background(), newArena())
	assert.ErrorIs(t, err, sssnss.ErrClosed)
	_, err = client.InitGroupsDyn(context.Background(), "alice", sssnss.NewGidList(0), 0)
	assert.ErrorIs(t, err, sssnss.ErrClosed)
}

func TestClientCloseEndsEnumeration(t *testing.T) {
	client, ch := newMockClient(t)
	ch.ExpectCall(sssnss.CmdSetGrEnt)
	ch.ExpectCall(sssnss.CmdGetGrEnt).ReturnBody(mocks.GroupBatch(wheel, audio))
	ch.ExpectCall(sssnss.CmdEndGrEnt)

	require.NoError(t, client.SetGrEnt(context.Background()))
	_, err := client.GetGrEnt(context.Background(), newArena())
	require.NoError(t, err)
	assert.Equal(t, 1, ch.Outstanding(), "the batch should still be held")

	require.NoError(t, client.Close())
	assert.Zero(t, ch.Outstanding())
}

func TestClientCloseReportsEndFailure(t *testing.T) {
	client, ch := newMockClient(t)
	ch.ExpectCall(sssnss.CmdGetGrEnt).ReturnBody(mocks.GroupBatch(wheel, audio))
	ch.ExpectCall(sssnss.CmdEndGrEnt).ReturnError(errors.New("socket gone"))

	_, err := client.GetGrEnt(context.Background(), newArena())
	require.NoError(t, err)

	err = client.Close()
	assert.ErrorContains(t, err, "ending enumeration")
	assert.ErrorContains(t, err, "socket gone")
}

func TestNewClientWithChannelValidates(t *testing.T) {
	_, err := sssnss.NewClientWithChannel(nil, nil)
	var target sssnss.ConfigurationError
	assert.ErrorAs(t, err, &target)

	conf := mocks.NewTestConfig()
	conf.Enumeration.BatchSize = 0
	_, err = sssnss.NewClientWithChannel(mocks.NewChannel(t), conf)
	assert.ErrorAs(t, err, &target)

	_, err = sssnss.NewClient(conf)
	assert.ErrorAs(t, err, &target)
}
