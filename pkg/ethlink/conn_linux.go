// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

//go:build linux

package ethlink

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// readTimeout bounds how long ReadFrame blocks so that the receive loop notices
// a stop request
const readTimeout = 200 * time.Millisecond

type rawConn struct {
	fd int
	sa *unix.SockaddrLinklayer
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// OpenRaw opens an AF_PACKET socket bound to the interface
func OpenRaw(ifindex int) (Conn, error) {
	proto := htons(unix.ETH_P_ALL)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrLinklayer{Protocol: proto, Ifindex: ifindex}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &rawConn{fd: fd, sa: sa}, nil
}

func (c *rawConn) ReadFrame(b []byte) (int, error) {
	n, _, err := unix.Recvfrom(c.fd, b, 0)
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return n, nil
}

func (c *rawConn) WriteFrame(b []byte) error {
	return unix.Sendto(c.fd, b, 0, c.sa)
}

func (c *rawConn) Close() error {
	return unix.Close(c.fd)
}
