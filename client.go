package sssnss

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
)

// Client resolves groups through the nss responder. It is safe for
// concurrent use; see the package documentation for how enumeration behaves
// under concurrency.
type Client struct {
	conf    *Config
	channel Channel
	metrics *clientMetrics
	cursor  *enumCursor
	closed  atomic.Bool
}

// NewClient validates conf and returns a Client talking to the daemon over
// its unix socket. The connection is made on first use. A nil conf means
// NewConfig().
func NewClient(conf *Config) (*Client, error) {
	if conf == nil {
		conf = NewConfig()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return newClient(newUnixChannel(conf), conf), nil
}

// NewClientWithChannel is like NewClient but sends every request through ch.
// The Client takes ownership of ch and closes it on Close.
func NewClientWithChannel(ch Channel, conf *Config) (*Client, error) {
	if ch == nil {
		return nil, ConfigurationError("channel must not be nil")
	}
	if conf == nil {
		conf = NewConfig()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return newClient(ch, conf), nil
}

func newClient(ch Channel, conf *Config) *Client {
	m := newClientMetrics(conf.MetricRegistry)
	return &Client{
		conf:    conf,
		channel: ch,
		metrics: m,
		cursor:  newEnumCursor(ch, conf, m),
	}
}

// Config returns the Client's configuration.
func (c *Client) Config() *Config {
	return c.conf
}

// GetGrNam looks up a group by name and decodes it into arena.
func (c *Client) GetGrNam(ctx context.Context, name string, arena *Arena) (*Group, error) {
	group, err := c.lookup(ctx, &groupByNameRequest{Name: name}, arena)
	return group, wrapResult("getgrnam", err)
}

// GetGrGid looks up a group by id and decodes it into arena.
func (c *Client) GetGrGid(ctx context.Context, gid Gid, arena *Arena) (*Group, error) {
	group, err := c.lookup(ctx, &groupByIDRequest{Gid: uint64(gid)}, arena)
	return group, wrapResult("getgrgid", err)
}

// lookup runs a single key query. The reply must hold exactly one record.
func (c *Client) lookup(ctx context.Context, body requestBody, arena *Arena) (*Group, error) {
	if c.Closed() {
		return nil, ErrClosed
	}

	payload, err := encode(body)
	if err != nil {
		return nil, err
	}
	reply, err := c.channel.Call(ctx, body.command(), payload)
	if err != nil {
		return nil, err
	}
	defer reply.Release()

	data := reply.Bytes()
	if len(data) < batchHeaderSize {
		return nil, PacketDecodingError{fmt.Sprintf("%s reply of %d bytes has no header", body.command(), len(data))}
	}
	var header batchHeader
	if err := decode(data[:batchHeaderSize], &header, true); err != nil {
		return nil, err
	}
	switch header.Count {
	case 0:
		return nil, ErrNotFound
	case 1:
	default:
		return nil, fmt.Errorf("%w: %d results", ErrAmbiguous, header.Count)
	}

	group, _, err := decodeGroup(data[batchHeaderSize:], arena, c.conf.Decode.StrictIDs)
	c.metrics.decoded(err)
	if err != nil {
		Logger.Printf("%s/decode failed: %v\n", body.command(), err)
		return nil, err
	}
	return group, nil
}

// SetGrEnt starts, or restarts, the enumeration of all groups.
func (c *Client) SetGrEnt(ctx context.Context) error {
	if c.Closed() {
		return wrapResult("setgrent", ErrClosed)
	}
	return wrapResult("setgrent", c.cursor.open(ctx))
}

// GetGrEnt decodes the next group of the enumeration into arena. It returns
// an error matching ErrNotFound once every group has been returned. After an
// ErrOutOfSpace the same group is returned again by the next call, so the
// caller can retry with a larger arena.
func (c *Client) GetGrEnt(ctx context.Context, arena *Arena) (*Group, error) {
	if c.Closed() {
		return nil, wrapResult("getgrent", ErrClosed)
	}
	group, err := c.cursor.next(ctx, arena)
	return group, wrapResult("getgrent", err)
}

// EndGrEnt ends the enumeration and releases its buffered groups.
func (c *Client) EndGrEnt(ctx context.Context) error {
	if c.Closed() {
		return wrapResult("endgrent", ErrClosed)
	}
	return wrapResult("endgrent", c.cursor.close(ctx))
}

// InitGroupsDyn appends the ids of the groups user is a member of to list,
// growing it as needed. A positive limit caps the list at limit entries;
// gids beyond it are dropped without error. It returns how many gids were
// appended.
func (c *Client) InitGroupsDyn(ctx context.Context, user string, list *GidList, limit int) (int, error) {
	if c.Closed() {
		return 0, wrapResult("initgroups_dyn", ErrClosed)
	}
	n, err := expandGroups(ctx, c.channel, c.conf, user, list, limit)
	if err == nil {
		c.metrics.groupsAppended.Update(int64(n))
	}
	return n, wrapResult("initgroups_dyn", err)
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// Close ends any enumeration in progress and closes the channel. Calling it
// twice returns ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var result *multierror.Error
	if c.cursor.active() {
		if err := c.cursor.close(context.Background()); err != nil {
			result = multierror.Append(result, fmt.Errorf("ending enumeration: %w", err))
		}
	}
	if err := c.channel.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing channel: %w", err))
	}
	return result.ErrorOrNil()
}
