//go:build linux

package sssnss

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// checkSocketOwner makes sure path is a socket owned by root, so that an
// unprivileged process cannot stand in for the daemon.
func checkSocketOwner(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFSOCK {
		return fmt.Errorf("%s is not a socket", path)
	}
	if st.Uid != 0 {
		return fmt.Errorf("%w: %s belongs to uid %d", ErrNotRoot, path, st.Uid)
	}
	return nil
}

// checkPeerOwner asks the kernel who is listening on the other end of conn.
func checkPeerOwner(conn net.Conn) error {
	uconn, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("unexpected connection type %T", conn)
	}
	rawConn, err := uconn.SyscallConn()
	if err != nil {
		return fmt.Errorf("failed to get raw connection: %w", err)
	}

	var cred *unix.Ucred
	var opErr error
	err = rawConn.Control(func(fd uintptr) {
		cred, opErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return fmt.Errorf("failed to control raw connection: %w", err)
	}
	if opErr != nil {
		return fmt.Errorf("failed to get peer credentials: %w", opErr)
	}
	if cred.Uid != 0 {
		return fmt.Errorf("%w: peer pid %d runs as uid %d", ErrNotRoot, cred.Pid, cred.Uid)
	}
	return nil
}
