package sssnss

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Gid is a group id as the host sees it (gid_t).
type Gid uint32

// minGroupFrame is the size of the smallest possible group record: the
// 8-byte gid, the 4-byte member count and two empty strings (name and
// password placeholder) of one NUL each.
const minGroupFrame = 8 + 4 + 1 + 1

// Group is a decoded group record. It owns no memory: name, password
// placeholder and the member table are stored in the Arena the record was
// decoded into and read back from it on access. A Group is only valid until
// that Arena is reset or reused.
type Group struct {
	Gid Gid

	arena  *Arena
	name   int
	passwd int
	table  int
	nmem   int
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.arena.cstring(g.name)
}

// Passwd returns the password placeholder, usually "x" or "*".
func (g *Group) Passwd() string {
	return g.arena.cstring(g.passwd)
}

// NumMembers returns the number of members.
func (g *Group) NumMembers() int {
	return g.nmem
}

// Member returns the i-th member name.
func (g *Group) Member(i int) string {
	if i < 0 || i >= g.nmem {
		return ""
	}
	return g.arena.cstring(g.arena.slot(g.table, i))
}

// Members returns the member names in order, walking the member table up to
// its zero sentinel.
func (g *Group) Members() []string {
	members := make([]string, 0, g.nmem)
	for i := 0; ; i++ {
		off := g.arena.slot(g.table, i)
		if off == 0 {
			break
		}
		members = append(members, g.arena.cstring(off))
	}
	return members
}

// String formats the group as a line of /etc/group.
func (g *Group) String() string {
	return g.Name() + ":" + g.Passwd() + ":" + strconv.FormatUint(uint64(g.Gid), 10) + ":" + strings.Join(g.Members(), ",")
}

// groupRecord decodes a single wire group record into an arena.
type groupRecord struct {
	arena     *Arena
	strictIDs bool

	group Group
}

func (r *groupRecord) decode(pd packetDecoder) error {
	if pd.remaining() < minGroupFrame {
		return PacketDecodingError{fmt.Sprintf("group record of %d bytes is shorter than the minimum of %d", pd.remaining(), minGroupFrame)}
	}

	gid, err := pd.getUint64()
	if err != nil {
		return err
	}
	if gid > math.MaxUint32 {
		if r.strictIDs {
			return PacketDecodingError{fmt.Sprintf("gid %d does not fit a native group id", gid)}
		}
		Logger.Printf("group id %d truncated to %d\n", gid, Gid(gid))
	}
	r.group.Gid = Gid(gid)

	count, err := pd.getUint32()
	if err != nil {
		return err
	}

	r.group.arena = r.arena
	if r.group.name, err = pd.getCString(r.arena); err != nil {
		return err
	}
	if r.group.passwd, err = pd.getCString(r.arena); err != nil {
		return err
	}

	// every member takes at least its NUL terminator
	if uint64(count) > uint64(pd.remaining()) {
		return PacketDecodingError{fmt.Sprintf("member count %d exceeds the %d bytes left", count, pd.remaining())}
	}
	r.group.nmem = int(count)

	// one extra slot for the zero sentinel, already in place
	if r.group.table, err = r.arena.claimTable(r.group.nmem + 1); err != nil {
		return err
	}

	for i := 0; i < r.group.nmem; i++ {
		off, err := pd.getCString(r.arena)
		if err != nil {
			return err
		}
		r.arena.putSlot(r.group.table, i, off)
	}

	return nil
}

// decodeGroup decodes the group record at the start of src into arena and
// returns it with the number of bytes of src it occupied. On error nothing
// is returned and every arena claim made by the attempt is rolled back.
func decodeGroup(src []byte, arena *Arena, strictIDs bool) (*Group, int, error) {
	mark := arena.Len()
	rec := groupRecord{arena: arena, strictIDs: strictIDs}
	helper := realDecoder{raw: src}
	if err := rec.decode(&helper); err != nil {
		arena.off = mark
		return nil, 0, err
	}
	return &rec.group, helper.offset(), nil
}
