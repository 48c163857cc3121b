package sssnss

// packetDecoder is the interface providing helpers for reading with the
// daemon's encoding rules. All integers are in native byte order.
type packetDecoder interface {
	remaining() int
	offset() int

	getUint32() (uint32, error)
	getUint64() (uint64, error)
	skip(n int) error

	// getCString copies the next NUL-terminated string into a and returns
	// the arena offset of the copy.
	getCString(a *Arena) (int, error)
}

type decoder interface {
	decode(pd packetDecoder) error
}

// decode parses buf into in, rejecting trailing bytes when exact is set.
func decode(buf []byte, in decoder, exact bool) error {
	helper := realDecoder{raw: buf}
	if err := in.decode(&helper); err != nil {
		return err
	}

	if exact && helper.off != len(buf) {
		return PacketDecodingError{"invalid length"}
	}

	return nil
}
