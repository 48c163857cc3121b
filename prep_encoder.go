package sssnss

import (
	"math"
	"strings"
)

type prepEncoder struct {
	length int
}

func (pe *prepEncoder) putUint32(in uint32) {
	pe.length += 4
}

func (pe *prepEncoder) putUint64(in uint64) {
	pe.length += 8
}

func (pe *prepEncoder) putCString(in string) error {
	if strings.IndexByte(in, 0) >= 0 {
		return PacketEncodingError{"string contains a NUL byte"}
	}
	if len(in) >= math.MaxInt32 {
		return PacketEncodingError{"string too long"}
	}
	pe.length += len(in) + 1
	return nil
}

func (pe *prepEncoder) putRawBytes(in []byte) {
	pe.length += len(in)
}
