package sssnss

import (
	"context"
	"fmt"
	"sync"
)

// batchHeaderSize is the result count plus padding that prefixes every
// multi-record reply.
const batchHeaderSize = 8

type batchHeader struct {
	Count uint32
}

func (h *batchHeader) decode(pd packetDecoder) (err error) {
	if h.Count, err = pd.getUint32(); err != nil {
		return err
	}
	return pd.skip(4)
}

// enumCursor walks the group database for SetGrEnt/GetGrEnt/EndGrEnt. It
// holds at most one batch reply at a time and releases it before fetching
// the next one or when the enumeration is reset.
//
// Closed is batch == nil; Active is batch != nil with offset <= len(data),
// offset == len(data) meaning the batch is used up.
type enumCursor struct {
	lock sync.Mutex

	channel Channel
	conf    *Config
	metrics *clientMetrics

	batch  *Reply
	data   []byte
	offset int
}

func newEnumCursor(ch Channel, conf *Config, m *clientMetrics) *enumCursor {
	return &enumCursor{channel: ch, conf: conf, metrics: m}
}

// release drops the held batch. Callers hold c.lock.
func (c *enumCursor) release() {
	if c.batch != nil {
		c.batch.Release()
	}
	c.batch = nil
	c.data = nil
	c.offset = 0
}

func (c *enumCursor) notify(ctx context.Context, cmd Command) error {
	reply, err := c.channel.Call(ctx, cmd, nil)
	if err != nil {
		return err
	}
	reply.Release()
	return nil
}

// open discards any leftover batch and tells the daemon to start over.
func (c *enumCursor) open(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.release()
	return c.notify(ctx, CmdSetGrEnt)
}

// close discards any leftover batch and ends the enumeration on the daemon side.
func (c *enumCursor) close(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.release()
	return c.notify(ctx, CmdEndGrEnt)
}

// next decodes the next group into arena, fetching a new batch when the held
// one is used up. It returns ErrNotFound once the daemon has no more groups.
// A failed decode leaves the cursor where it was, so the same record can be
// retried with a larger arena.
func (c *enumCursor) next(ctx context.Context, arena *Arena) (*Group, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for {
		if c.batch != nil && c.offset < len(c.data) {
			group, n, err := decodeGroup(c.data[c.offset:], arena, c.conf.Decode.StrictIDs)
			c.metrics.decoded(err)
			if err != nil {
				return nil, err
			}
			c.offset += n
			return group, nil
		}

		if err := c.fetch(ctx); err != nil {
			return nil, err
		}
	}
}

// fetch replaces the held batch with the next one from the daemon. On any
// failure the cursor ends up Closed.
func (c *enumCursor) fetch(ctx context.Context) error {
	c.release()

	payload, err := encode(&enumerationRequest{MaxEntries: uint32(c.conf.Enumeration.BatchSize)})
	if err != nil {
		return err
	}
	reply, err := c.channel.Call(ctx, CmdGetGrEnt, payload)
	if err != nil {
		return err
	}

	body := reply.Bytes()
	if len(body) < batchHeaderSize {
		reply.Release()
		return PacketDecodingError{fmt.Sprintf("enumeration reply of %d bytes has no header", len(body))}
	}
	var header batchHeader
	if err := decode(body[:batchHeaderSize], &header, true); err != nil {
		reply.Release()
		return err
	}
	if header.Count == 0 || len(body) == batchHeaderSize {
		reply.Release()
		return ErrNotFound
	}

	c.metrics.batchSize.Update(int64(header.Count))
	Logger.Printf("enumeration/batch loaded %d groups in %d bytes\n", header.Count, len(body))

	c.batch = reply
	c.data = body
	c.offset = batchHeaderSize
	return nil
}

// active reports whether a batch is currently held.
func (c *enumCursor) active() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.batch != nil
}
