//go:build !linux

package sssnss

import "net"

// The nss responder only exists on Linux; elsewhere there is nothing to
// check against and the socket is trusted as configured.

func checkSocketOwner(path string) error {
	return nil
}

func checkPeerOwner(conn net.Conn) error {
	return nil
}
