package sssnss

import "encoding/binary"

type realEncoder struct {
	raw []byte
	off int
}

func (re *realEncoder) putUint32(in uint32) {
	binary.NativeEndian.PutUint32(re.raw[re.off:], in)
	re.off += 4
}

func (re *realEncoder) putUint64(in uint64) {
	binary.NativeEndian.PutUint64(re.raw[re.off:], in)
	re.off += 8
}

// putCString relies on prepEncoder having rejected embedded NULs.
func (re *realEncoder) putCString(in string) error {
	re.off += copy(re.raw[re.off:], in)
	re.raw[re.off] = 0
	re.off++
	return nil
}

func (re *realEncoder) putRawBytes(in []byte) {
	re.off += copy(re.raw[re.off:], in)
}
