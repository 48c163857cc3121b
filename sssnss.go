/*
Package sssnss is a client for the group database of the SSSD NSS responder.

It speaks the flat binary protocol the daemon uses on its nss pipe and decodes
the replies into caller-supplied memory, the way the getgr* family of C
library calls does:

	client, err := sssnss.NewClient(sssnss.NewConfig())
	if err != nil {
		panic(err)
	}
	defer client.Close()

	arena := sssnss.NewArena(make([]byte, 1024))
	group, err := client.GetGrNam(ctx, "wheel", arena)

A decoded Group never owns memory: its name, password placeholder and member
table are stored inside the Arena it was decoded into, and stay valid exactly
as long as that Arena is not reset or reused. A too small Arena is reported as
ErrOutOfSpace (errno ERANGE) and the call may be retried with a larger one.

Enumeration (SetGrEnt, GetGrEnt, EndGrEnt) pages through the whole group
database in batches. Every Client holds a single enumeration cursor; its
operations are serialized, so concurrent enumerations through the same Client
interleave rather than run independently. Single key lookups and InitGroupsDyn
carry no state and can be used concurrently.

The transport is the Channel interface. NewClient connects to the daemon over
its unix socket; NewClientWithChannel accepts any other implementation, such as
the scripted one in the mocks package.
*/
package sssnss

import (
	"io"
	"log"
)

// Logger is the instance of a StdLogger interface that sssnss writes connection
// management and decoding events to. By default it is set to discard all log
// messages via io.Discard, but you can set it to redirect wherever you want.
var Logger StdLogger = log.New(io.Discard, "[sssnss] ", log.LstdFlags)

// StdLogger is used to log error messages.
type StdLogger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// ProtocolVersion is the version of the nss pipe protocol this package speaks.
const ProtocolVersion uint32 = 1

// DefaultBatchSize is the number of groups requested per GETGRENT round trip.
const DefaultBatchSize = 256
