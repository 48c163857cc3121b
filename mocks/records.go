package mocks

import "encoding/binary"

// GroupRecord is one group as the daemon puts it on the wire.
type GroupRecord struct {
	Gid     uint64
	Name    string
	Passwd  string
	Members []string
}

// NewGroupRecord is a shorthand for a GroupRecord literal.
func NewGroupRecord(gid uint64, name, passwd string, members ...string) GroupRecord {
	return GroupRecord{Gid: gid, Name: name, Passwd: passwd, Members: members}
}

// Encode returns the wire form of the record: gid, member count and the
// NUL-terminated name, password and member names.
func (r GroupRecord) Encode() []byte {
	b := binary.NativeEndian.AppendUint64(nil, r.Gid)
	b = binary.NativeEndian.AppendUint32(b, uint32(len(r.Members)))
	b = appendCString(b, r.Name)
	b = appendCString(b, r.Passwd)
	for _, m := range r.Members {
		b = appendCString(b, m)
	}
	return b
}

// GroupBatch returns the body of a GETGRNAM, GETGRGID or GETGRENT reply
// carrying the given records.
func GroupBatch(records ...GroupRecord) []byte {
	b := batchHeader(len(records))
	for _, r := range records {
		b = append(b, r.Encode()...)
	}
	return b
}

// GidReply returns the body of an INITGR reply carrying gids.
func GidReply(gids ...uint64) []byte {
	b := batchHeader(len(gids))
	for _, gid := range gids {
		b = binary.NativeEndian.AppendUint64(b, gid)
	}
	return b
}

// VersionReply returns the body of a GET_VERSION reply.
func VersionReply(version uint32) []byte {
	return binary.NativeEndian.AppendUint32(nil, version)
}

func batchHeader(count int) []byte {
	b := binary.NativeEndian.AppendUint32(nil, uint32(count))
	return append(b, 0, 0, 0, 0)
}

func appendCString(b []byte, s string) []byte {
	return append(append(b, s...), 0)
}
