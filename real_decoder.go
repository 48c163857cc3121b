package sssnss

import (
	"encoding/binary"
	"fmt"
)

var errInsufficientData = PacketDecodingError{"insufficient data to decode packet, more bytes expected"}

type realDecoder struct {
	raw []byte
	off int
}

func (rd *realDecoder) remaining() int {
	return len(rd.raw) - rd.off
}

func (rd *realDecoder) offset() int {
	return rd.off
}

func (rd *realDecoder) getUint32() (uint32, error) {
	if rd.remaining() < 4 {
		rd.off = len(rd.raw)
		return 0, errInsufficientData
	}
	tmp := binary.NativeEndian.Uint32(rd.raw[rd.off:])
	rd.off += 4
	return tmp, nil
}

func (rd *realDecoder) getUint64() (uint64, error) {
	if rd.remaining() < 8 {
		rd.off = len(rd.raw)
		return 0, errInsufficientData
	}
	tmp := binary.NativeEndian.Uint64(rd.raw[rd.off:])
	rd.off += 8
	return tmp, nil
}

func (rd *realDecoder) skip(n int) error {
	if n < 0 {
		return PacketDecodingError{fmt.Sprintf("invalid skip length (%d)", n)}
	}
	if rd.remaining() < n {
		rd.off = len(rd.raw)
		return errInsufficientData
	}
	rd.off += n
	return nil
}

func (rd *realDecoder) getCString(a *Arena) (int, error) {
	off, n, err := a.putCString(rd.raw[rd.off:])
	if err != nil {
		return 0, err
	}
	rd.off += n
	return off, nil
}
