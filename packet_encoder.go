package sssnss

// packetEncoder is the interface providing helpers for writing with the
// daemon's encoding rules. All integers are in native byte order.
type packetEncoder interface {
	putUint32(in uint32)
	putUint64(in uint64)
	putCString(in string) error
	putRawBytes(in []byte)
}

type encoder interface {
	encode(pe packetEncoder) error
}

// encode takes an encoder and turns it into bytes: a first pass computes the
// length, a second fills an exactly sized buffer.
func encode(e encoder) ([]byte, error) {
	if e == nil {
		return nil, nil
	}

	var prepEnc prepEncoder
	if err := e.encode(&prepEnc); err != nil {
		return nil, err
	}
	if prepEnc.length == 0 {
		return nil, nil
	}

	realEnc := realEncoder{raw: make([]byte, prepEnc.length)}
	if err := e.encode(&realEnc); err != nil {
		return nil, err
	}

	return realEnc.raw, nil
}
