package sssnss

import (
	"bytes"
	"encoding/binary"
	"strconv"
)

// slotSize is the width of one member table slot, the size of a pointer on
// the running platform.
const slotSize = strconv.IntSize / 8

// Arena is a fixed-capacity region of caller memory that decoded records are
// written into. Space is claimed front to back and never handed out twice;
// Reset makes the whole region available again, invalidating every Group
// decoded into it.
//
// An Arena must not be shared by concurrent decodes.
type Arena struct {
	buf []byte
	off int
}

// NewArena returns an Arena backed by buf. Its capacity is len(buf); nothing
// beyond len(buf) is ever written.
func NewArena(buf []byte) *Arena {
	return &Arena{buf: buf}
}

// Cap returns the capacity of the arena in bytes.
func (a *Arena) Cap() int {
	return len(a.buf)
}

// Len returns the number of bytes claimed so far.
func (a *Arena) Len() int {
	return a.off
}

// Available returns the number of bytes that can still be claimed.
func (a *Arena) Available() int {
	return len(a.buf) - a.off
}

// Reset releases every claim.
func (a *Arena) Reset() {
	a.off = 0
}

// Bytes returns the claimed part of the arena.
func (a *Arena) Bytes() []byte {
	return a.buf[:a.off]
}

// claim reserves n bytes and returns their starting offset.
func (a *Arena) claim(n int) (int, error) {
	if n < 0 || n > a.Available() {
		return 0, ErrOutOfSpace
	}
	start := a.off
	a.off += n
	return start, nil
}

// putCString copies the NUL-terminated string at the start of src, terminator
// included, and returns the arena offset of the copy and the number of source
// bytes used.
//
// When src holds no NUL the result depends on which side runs out first, as
// a byte by byte copy would: an arena that could take all of src reports a
// malformed source, a smaller one reports ErrOutOfSpace.
func (a *Arena) putCString(src []byte) (off, n int, err error) {
	end := bytes.IndexByte(src, 0)
	if end < 0 {
		if a.Available() >= len(src) {
			return 0, 0, PacketDecodingError{"string is not NUL-terminated"}
		}
		return 0, 0, ErrOutOfSpace
	}
	n = end + 1
	off, err = a.claim(n)
	if err != nil {
		return 0, 0, err
	}
	copy(a.buf[off:off+n], src[:n])
	return off, n, nil
}

// cstring reads the string stored at off, up to but excluding its NUL.
func (a *Arena) cstring(off int) string {
	if off < 0 || off >= a.off {
		return ""
	}
	b := a.buf[off:a.off]
	if end := bytes.IndexByte(b, 0); end >= 0 {
		b = b[:end]
	}
	return string(b)
}

// claimTable reserves n pointer-sized slots, all zero.
func (a *Arena) claimTable(n int) (int, error) {
	if n < 0 || n > a.Available()/slotSize {
		return 0, ErrOutOfSpace
	}
	off, err := a.claim(n * slotSize)
	if err != nil {
		return 0, err
	}
	clear(a.buf[off : off+n*slotSize])
	return off, nil
}

func (a *Arena) putSlot(table, i, v int) {
	p := a.buf[table+i*slotSize:]
	if slotSize == 8 {
		binary.NativeEndian.PutUint64(p, uint64(v))
	} else {
		binary.NativeEndian.PutUint32(p, uint32(v))
	}
}

func (a *Arena) slot(table, i int) int {
	p := a.buf[table+i*slotSize:]
	if slotSize == 8 {
		return int(binary.NativeEndian.Uint64(p))
	}
	return int(binary.NativeEndian.Uint32(p))
}
