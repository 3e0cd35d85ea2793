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

package uring

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PutSockaddr encodes sa into raw and returns the encoded length.
// Only inet4, inet6 and unix addresses are supported.
func PutSockaddr(raw *unix.RawSockaddrAny, sa unix.Sockaddr) (uint32, error) {
	*raw = unix.RawSockaddrAny{}
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		p := (*unix.RawSockaddrInet4)(unsafe.Pointer(raw))
		p.Family = unix.AF_INET
		putPort(&p.Port, sa.Port)
		p.Addr = sa.Addr
		return unix.SizeofSockaddrInet4, nil
	case *unix.SockaddrInet6:
		p := (*unix.RawSockaddrInet6)(unsafe.Pointer(raw))
		p.Family = unix.AF_INET6
		putPort(&p.Port, sa.Port)
		p.Addr = sa.Addr
		p.Scope_id = sa.ZoneId
		return unix.SizeofSockaddrInet6, nil
	case *unix.SockaddrUnix:
		p := (*unix.RawSockaddrUnix)(unsafe.Pointer(raw))
		if len(sa.Name) >= len(p.Path) {
			return 0, syscall.EINVAL
		}
		p.Family = unix.AF_UNIX
		for i := 0; i < len(sa.Name); i++ {
			p.Path[i] = int8(sa.Name[i])
		}
		n := uint32(unsafe.Offsetof(p.Path)) + uint32(len(sa.Name))
		if len(sa.Name) > 0 && sa.Name[0] != '@' {
			n++ // NUL terminator of a pathname socket
		} else if len(sa.Name) > 0 {
			p.Path[0] = 0 // abstract socket
		}
		return n, nil
	}
	return 0, syscall.EAFNOSUPPORT
}

// ParseSockaddr decodes an address written by the kernel.
func ParseSockaddr(raw *unix.RawSockaddrAny) (unix.Sockaddr, error) {
	switch raw.Addr.Family {
	case unix.AF_INET:
		p := (*unix.RawSockaddrInet4)(unsafe.Pointer(raw))
		return &unix.SockaddrInet4{Port: getPort(&p.Port), Addr: p.Addr}, nil
	case unix.AF_INET6:
		p := (*unix.RawSockaddrInet6)(unsafe.Pointer(raw))
		return &unix.SockaddrInet6{Port: getPort(&p.Port), ZoneId: p.Scope_id, Addr: p.Addr}, nil
	case unix.AF_UNIX:
		p := (*unix.RawSockaddrUnix)(unsafe.Pointer(raw))
		n := 0
		for n < len(p.Path) && (p.Path[n] != 0 || (n == 0 && p.Path[1] != 0)) {
			n++
		}
		name := make([]byte, n)
		for i := 0; i < n; i++ {
			name[i] = byte(p.Path[i])
		}
		if n > 0 && name[0] == 0 {
			name[0] = '@'
		}
		return &unix.SockaddrUnix{Name: string(name)}, nil
	}
	return nil, syscall.EAFNOSUPPORT
}

func putPort(dst *uint16, port int) {
	b := (*[2]byte)(unsafe.Pointer(dst))
	b[0] = byte(port >> 8)
	b[1] = byte(port)
}

func getPort(src *uint16) int {
	b := (*[2]byte)(unsafe.Pointer(src))
	return int(b[0])<<8 | int(b[1])
}
