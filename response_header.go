package sssnss

import "fmt"

// MaxReplySize is the largest reply, header included, the client accepts from
// the daemon.
var MaxReplySize uint32 = 64 * 1024 * 1024

type responseHeader struct {
	length   uint32
	cmd      Command
	status   uint32
	reserved uint32
}

func (r *responseHeader) decode(pd packetDecoder) (err error) {
	if r.length, err = pd.getUint32(); err != nil {
		return err
	}
	if r.length < packetHeaderSize || r.length > MaxReplySize {
		return PacketDecodingError{fmt.Sprintf("reply length %d out of bounds", r.length)}
	}

	cmd, err := pd.getUint32()
	if err != nil {
		return err
	}
	r.cmd = Command(cmd)

	if r.status, err = pd.getUint32(); err != nil {
		return err
	}
	r.reserved, err = pd.getUint32()
	return err
}

type versionResponse struct {
	Version uint32
}

func (r *versionResponse) decode(pd packetDecoder) (err error) {
	r.Version, err = pd.getUint32()
	return err
}
