package sssnss

// wireGroup is a group record as the daemon encodes it.
type wireGroup struct {
	gid     uint64
	name    string
	passwd  string
	members []string
}

func (g *wireGroup) encode(pe packetEncoder) error {
	pe.putUint64(g.gid)
	pe.putUint32(uint32(len(g.members)))
	if err := pe.putCString(g.name); err != nil {
		return err
	}
	if err := pe.putCString(g.passwd); err != nil {
		return err
	}
	for _, m := range g.members {
		if err := pe.putCString(m); err != nil {
			return err
		}
	}
	return nil
}

// arenaSize is the number of arena bytes the decoded record needs.
func (g *wireGroup) arenaSize() int {
	n := len(g.name) + 1 + len(g.passwd) + 1
	for _, m := range g.members {
		n += len(m) + 1
	}
	return n + (len(g.members)+1)*slotSize
}

// fataler is satisfied by both *testing.T and *rapid.T.
type fataler interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

func encodeGroup(t fataler, g wireGroup) []byte {
	t.Helper()
	buf, err := encode(&g)
	if err != nil {
		t.Fatalf("encoding %s: %v", g.name, err)
	}
	return buf
}

var wheel = wireGroup{gid: 10, name: "wheel", passwd: "x", members: []string{"root", "alice"}}
