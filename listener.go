// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package uringloop

import (
	"context"
	"net"

	"github.com/mdlayher/socket"
	"golang.org/x/sys/unix"

	"github.com/cloudwego/uringloop/uring"
)

const defaultBacklog = 128

// ListenConfig contains options for listening to an address.
type ListenConfig struct {
	// Network is tcp, tcp4, tcp6 or unix, tcp by default.
	Network string
	// Backlog is the accept queue length, 128 by default.
	Backlog int
	// ReusePort sets SO_REUSEPORT so several listeners can share the address.
	ReusePort bool
	// Resolver resolves the host, net.DefaultResolver by default.
	Resolver Resolver
}

// Listener is a listening stream socket.
type Listener struct {
	*fdHandle
	addr net.Addr
}

// Listen listens on tcp host:port with the default ListenConfig.
func Listen(r *Reactor, host string, port int) (*Listener, error) {
	return ListenConfig{}.Listen(r, host, port)
}

// Listen tries every address host resolves to, in resolution order, until one
// of them binds and listens. Failed candidates are logged and closed.
func (lc ListenConfig) Listen(r *Reactor, host string, port int) (*Listener, error) {
	network := lc.Network
	if network == "" {
		network = "tcp"
	}
	switch network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return nil, net.UnknownNetworkError(network)
	}
	backlog := lc.Backlog
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	sas, err := resolve(context.Background(), lc.Resolver, network, host, port)
	if err != nil {
		return nil, err
	}
	var firstErr error
	for _, sa := range sas {
		fd, err := listenFD(sa, backlog, lc.ReusePort)
		if err != nil {
			logger.Printf("URINGLOOP: listen on %v failed: %v", sockaddrToAddr(sa, unix.SOCK_STREAM), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ln := &Listener{fdHandle: newFDHandle(r, fd)}
		if lsa, err := unix.Getsockname(fd); err == nil {
			ln.addr = sockaddrToAddr(lsa, unix.SOCK_STREAM)
		}
		return ln, nil
	}
	return nil, firstErr
}

// listenFD returns a blocking listening socket bound to sa. Every descriptor
// opened on the way is closed on failure.
func listenFD(sa unix.Sockaddr, backlog int, reusePort bool) (fd int, err error) {
	c, err := socket.Socket(sockDomain(sa), unix.SOCK_STREAM, 0, "uringloop-listener", nil)
	if err != nil {
		return -1, err
	}
	defer c.Close()
	if _, ok := sa.(*unix.SockaddrUnix); !ok {
		if err = c.SetsockoptInt(unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return -1, err
		}
		if reusePort {
			if err = c.SetsockoptInt(unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
				return -1, err
			}
		}
	}
	if err = c.Bind(sa); err != nil {
		return -1, err
	}
	if err = c.Listen(backlog); err != nil {
		return -1, err
	}
	rc, err := c.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd = -1
	if cerr := rc.Control(func(s uintptr) {
		fd, err = unix.FcntlInt(s, unix.F_DUPFD_CLOEXEC, 0)
	}); cerr != nil {
		err = cerr
	}
	if err != nil {
		if fd >= 0 {
			_ = unix.Close(fd)
		}
		return -1, err
	}
	if err = unix.SetNonblock(fd, false); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Move transfers ownership to the returned Listener, l is left closed.
func (l *Listener) Move() *Listener {
	return &Listener{fdHandle: l.move(), addr: l.addr}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// Accept waits for a connection and returns it with the peer address.
func (l *Listener) Accept() (*Socket, net.Addr, error) {
	return l.AcceptOn(l.r)
}

// AcceptOn is Accept, but the new socket is bound to r.
// The accept itself still runs on the listener's reactor.
func (l *Listener) AcceptOn(r *Reactor) (*Socket, net.Addr, error) {
	op := uring.Accept(l.fd, unix.SOCK_CLOEXEC)
	fd, err := l.do(op)
	if err != nil {
		return nil, nil, Exception(err, "accept")
	}
	s := WrapSocket(r, fd)
	sa, _ := op.Sockaddr()
	return s, sockaddrToAddr(sa, unix.SOCK_STREAM), nil
}
