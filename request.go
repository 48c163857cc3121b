package sssnss

import "fmt"

// Command identifies a request to the nss responder.
type Command uint32

// Commands understood by the group database of the nss responder. The values
// match the daemon's sss_cli.h.
const (
	CmdGetVersion Command = 0x0001
	CmdGetGrNam   Command = 0x0021
	CmdGetGrGid   Command = 0x0022
	CmdSetGrEnt   Command = 0x0023
	CmdGetGrEnt   Command = 0x0024
	CmdEndGrEnt   Command = 0x0025
	CmdInitGr     Command = 0x0026
)

var commandNames = map[Command]string{
	CmdGetVersion: "SSS_GET_VERSION",
	CmdGetGrNam:   "SSS_NSS_GETGRNAM",
	CmdGetGrGid:   "SSS_NSS_GETGRGID",
	CmdSetGrEnt:   "SSS_NSS_SETGRENT",
	CmdGetGrEnt:   "SSS_NSS_GETGRENT",
	CmdEndGrEnt:   "SSS_NSS_ENDGRENT",
	CmdInitGr:     "SSS_NSS_INITGR",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Command(%#x)", uint32(c))
}

type requestBody interface {
	encoder
	command() Command
}

// packetHeaderSize is the size of the header framing every request and reply
// on the socket: total length, command, status and a reserved word.
const packetHeaderSize = 16

type request struct {
	cmd  Command
	body []byte
}

func (r *request) encode(pe packetEncoder) error {
	pe.putUint32(uint32(packetHeaderSize + len(r.body)))
	pe.putUint32(uint32(r.cmd))
	pe.putUint32(0) // status
	pe.putUint32(0) // reserved
	pe.putRawBytes(r.body)
	return nil
}

type groupByNameRequest struct {
	Name string
}

func (r *groupByNameRequest) command() Command { return CmdGetGrNam }

func (r *groupByNameRequest) encode(pe packetEncoder) error {
	return pe.putCString(r.Name)
}

type groupByIDRequest struct {
	Gid uint64
}

func (r *groupByIDRequest) command() Command { return CmdGetGrGid }

func (r *groupByIDRequest) encode(pe packetEncoder) error {
	pe.putUint64(r.Gid)
	return nil
}

type enumerationRequest struct {
	MaxEntries uint32
}

func (r *enumerationRequest) command() Command { return CmdGetGrEnt }

func (r *enumerationRequest) encode(pe packetEncoder) error {
	pe.putUint32(r.MaxEntries)
	return nil
}

type initGroupsRequest struct {
	User string
}

func (r *initGroupsRequest) command() Command { return CmdInitGr }

func (r *initGroupsRequest) encode(pe packetEncoder) error {
	return pe.putCString(r.User)
}

type versionRequest struct {
	Version uint32
}

func (r *versionRequest) command() Command { return CmdGetVersion }

func (r *versionRequest) encode(pe packetEncoder) error {
	pe.putUint32(r.Version)
	return nil
}
