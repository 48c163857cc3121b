package sssnss

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGidList is returned by InitGroupsDyn when the list's Start is
// outside its storage.
var ErrInvalidGidList = errors.New("sssnss: gid list start outside its storage")

// GidList is the caller-owned, growable array InitGroupsDyn appends to. It
// mirrors the (start, size, groups) triple of initgroups_dyn: Groups holds the
// storage, len(Groups) is its size, and Start is the index the next gid is
// written to. InitGroupsDyn grows Groups when needed but never shrinks it.
type GidList struct {
	Groups []Gid
	Start  int

	// Alloc, if set, allocates storage for growth. It must return a slice
	// of exactly size elements that begins with the contents of old, or an
	// error; on error the list is left untouched. The default allocator
	// refuses to grow past Config.InitGroups.MaxGroups.
	Alloc func(old []Gid, size int) ([]Gid, error)
}

// NewGidList returns an empty list with room for size gids.
func NewGidList(size int) *GidList {
	return &GidList{Groups: make([]Gid, size)}
}

// Size returns the physical size of the list.
func (l *GidList) Size() int {
	return len(l.Groups)
}

// Gids returns the gids written so far.
func (l *GidList) Gids() []Gid {
	return l.Groups[:l.Start]
}

// grow resizes the storage to size, keeping the contents. It either
// succeeds completely or leaves the list as it was.
func (l *GidList) grow(size, maxGroups int) error {
	alloc := l.Alloc
	if alloc == nil {
		alloc = func(old []Gid, size int) ([]Gid, error) {
			if size > maxGroups {
				return nil, fmt.Errorf("%w: %d groups exceeds the maximum of %d", ErrOutOfMemory, size, maxGroups)
			}
			groups := make([]Gid, size)
			copy(groups, old)
			return groups, nil
		}
	}

	groups, err := alloc(l.Groups, size)
	if err != nil {
		if !errors.Is(err, ErrOutOfMemory) {
			err = fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		}
		return err
	}
	if len(groups) != size {
		return fmt.Errorf("%w: allocator returned %d slots, want %d", ErrOutOfMemory, len(groups), size)
	}
	l.Groups = groups
	return nil
}

// gidListResponse is the INITGR reply: a count, padding and count 64-bit gids.
type gidListResponse struct {
	Count uint32
	Gids  []uint64
}

func (r *gidListResponse) decode(pd packetDecoder) (err error) {
	var header batchHeader
	if err := header.decode(pd); err != nil {
		return err
	}
	r.Count = header.Count

	if uint64(r.Count)*8 > uint64(pd.remaining()) {
		return PacketDecodingError{fmt.Sprintf("%d gids announced but only %d bytes follow", r.Count, pd.remaining())}
	}
	r.Gids = make([]uint64, r.Count)
	for i := range r.Gids {
		if r.Gids[i], err = pd.getUint64(); err != nil {
			return err
		}
	}
	return nil
}

// expandGroups appends the groups of user to list, honouring limit when it is
// positive. Hitting the limit is not an error: the gids that do not fit are
// dropped and the number actually appended is returned.
func expandGroups(ctx context.Context, ch Channel, conf *Config, user string, list *GidList, limit int) (int, error) {
	if list.Start < 0 || list.Start > len(list.Groups) {
		return 0, ErrInvalidGidList
	}

	payload, err := encode(&initGroupsRequest{User: user})
	if err != nil {
		return 0, err
	}
	reply, err := ch.Call(ctx, CmdInitGr, payload)
	if err != nil {
		return 0, err
	}
	defer reply.Release()

	var res gidListResponse
	if err := decode(reply.Bytes(), &res, false); err != nil {
		return 0, err
	}
	if res.Count == 0 {
		return 0, ErrNotFound
	}

	count := int(res.Count)
	size := len(list.Groups)
	n := count
	target := size + count
	if limit > 0 && target > limit {
		target = limit
		n = max(limit-list.Start, 0)
	}
	n = min(n, count)

	// check every gid before touching the list
	if conf.Decode.StrictIDs {
		for i := 0; i < n; i++ {
			if gid := res.Gids[i]; gid > math.MaxUint32 {
				return 0, PacketDecodingError{fmt.Sprintf("gid %d does not fit a native group id", gid)}
			}
		}
	}

	if list.Start+n > size {
		if err := list.grow(target, conf.InitGroups.MaxGroups); err != nil {
			return 0, err
		}
	}

	for i := 0; i < n; i++ {
		list.Groups[list.Start] = Gid(res.Gids[i])
		list.Start++
	}

	if n < count {
		Logger.Printf("initgroups/%s dropped %d of %d groups at limit %d\n", user, count-n, count, limit)
	}
	return n, nil
}
