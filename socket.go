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

	"golang.org/x/sys/unix"

	"github.com/cloudwego/uringloop/uring"
)

// Socket is an open socket.
type Socket struct {
	ioHandle
}

// WrapSocket takes ownership of an already open socket fd.
func WrapSocket(r *Reactor, fd int) *Socket {
	return &Socket{ioHandle{newFDHandle(r, fd)}}
}

// NewSocket creates a socket, see socket(2). SOCK_CLOEXEC is always added.
func NewSocket(r *Reactor, domain, typ, proto int) (*Socket, error) {
	fd, err := unix.Socket(domain, typ|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return nil, Exception(err, "socket")
	}
	return WrapSocket(r, fd), nil
}

// Dial connects to host:port, trying every resolved address in order.
// The first successful connect wins, the error of the first candidate is
// returned when all of them fail.
// network is one of tcp, tcp4, tcp6, udp, udp4, udp6, unix and unixgram,
// host is the socket path for the unix networks.
func Dial(r *Reactor, network, host string, port int) (*Socket, error) {
	typ, err := sockType(network)
	if err != nil {
		return nil, err
	}
	sas, err := resolve(context.Background(), nil, network, host, port)
	if err != nil {
		return nil, err
	}
	var firstErr error
	for _, sa := range sas {
		s, err := NewSocket(r, sockDomain(sa), typ, 0)
		if err == nil {
			if err = s.Connect(sa); err == nil {
				return s, nil
			}
			_ = s.Close()
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Move transfers ownership to the returned Socket, s is left closed.
func (s *Socket) Move() *Socket {
	return &Socket{ioHandle{s.move()}}
}

// Connect connects the socket to sa.
func (s *Socket) Connect(sa unix.Sockaddr) error {
	op, err := uring.Connect(s.fd, sa)
	if err != nil {
		return err
	}
	if _, err = s.do(op); err != nil {
		return Exception(err, "connect")
	}
	return nil
}

// Recv receives into buf, see recv(2).
func (s *Socket) Recv(buf []byte, flags uint32) (int, error) {
	return s.do(uring.Recv(s.fd, buf, flags))
}

// Send sends buf, see send(2).
func (s *Socket) Send(buf []byte, flags uint32) (int, error) {
	return s.do(uring.Send(s.fd, buf, flags))
}

// Recvmsg receives into bufs and oob. It returns the payload length, the
// control message length, the sender and the MSG_* flags of the message.
func (s *Socket) Recvmsg(bufs [][]byte, oob []byte, flags uint32) (n, oobn int, from unix.Sockaddr, recvflags int, err error) {
	op := uring.RecvMsg(s.fd, bufs, oob, flags)
	if n, err = s.do(op); err != nil {
		return 0, 0, nil, 0, err
	}
	msg := op.Msghdr()
	from, _ = op.From()
	return n, int(msg.Controllen), from, int(msg.Flags), nil
}

// Sendmsg sends bufs and oob to to, which is nil on a connected socket.
func (s *Socket) Sendmsg(bufs [][]byte, oob []byte, to unix.Sockaddr, flags uint32) (int, error) {
	op, err := uring.SendMsg(s.fd, bufs, oob, to, flags)
	if err != nil {
		return 0, err
	}
	return s.do(op)
}

// Shutdown shuts down part of a full duplex connection, how is unix.SHUT_RD, SHUT_WR or SHUT_RDWR.
func (s *Socket) Shutdown(how int) error {
	_, err := s.do(uring.Shutdown(s.fd, how))
	return err
}

// LocalAddr returns the bound address.
func (s *Socket) LocalAddr() net.Addr {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return nil
	}
	return sockaddrToAddr(sa, s.sockType())
}

// RemoteAddr returns the peer address of a connected socket.
func (s *Socket) RemoteAddr() net.Addr {
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return nil
	}
	return sockaddrToAddr(sa, s.sockType())
}

func (s *Socket) sockType() int {
	typ, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return unix.SOCK_STREAM
	}
	return typ
}
