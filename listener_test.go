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
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"syscall"
	"testing"
)

type fakeResolver map[string][]net.IPAddr

func (r fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	addrs, ok := r[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	MustNil(t, err)
	return len(entries)
}

func TestListenerFallback(t *testing.T) {
	r := newTestReactor(t, 8)
	defer r.Close()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	MustNil(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	var logs bytes.Buffer
	logger.SetOutput(&logs)
	defer logger.SetOutput(os.Stderr)

	resolver := fakeResolver{"fallback.test": {
		{IP: net.ParseIP("127.0.0.1")},
		{IP: net.ParseIP("127.0.0.2")},
	}}
	before := openFDs(t)
	ln, err := ListenConfig{Resolver: resolver}.Listen(r, "fallback.test", port)
	MustNil(t, err)
	Equal(t, ln.Addr().String(), net.JoinHostPort("127.0.0.2", strconv.Itoa(port)))
	// the listener itself is the only new descriptor
	Equal(t, openFDs(t), before+1)
	MustTrue(t, bytes.Contains(logs.Bytes(), []byte("URINGLOOP: listen on 127.0.0.1")))

	_, err = BlockOn(r, func() (int, error) {
		return 0, ln.Close()
	})
	MustNil(t, err)
	Equal(t, openFDs(t), before)
}

func TestListenerAllCandidatesFail(t *testing.T) {
	r := newTestReactor(t, 8)
	defer r.Close()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	MustNil(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	logger.SetOutput(&bytes.Buffer{})
	defer logger.SetOutput(os.Stderr)

	resolver := fakeResolver{"busy.test": {{IP: net.ParseIP("127.0.0.1")}}}
	before := openFDs(t)
	_, err = ListenConfig{Resolver: resolver}.Listen(r, "busy.test", port)
	MustTrue(t, errors.Is(err, syscall.EADDRINUSE))
	Equal(t, openFDs(t), before)

	_, err = ListenConfig{Resolver: resolver}.Listen(r, "unknown.test", port)
	var dnsErr *net.DNSError
	MustTrue(t, errors.As(err, &dnsErr))

	_, err = ListenConfig{Network: "tcp6", Resolver: resolver}.Listen(r, "busy.test", port)
	MustTrue(t, errors.Is(err, ErrNoAddress))

	_, err = ListenConfig{Network: "udp"}.Listen(r, "", 0)
	MustTrue(t, err != nil)
	Equal(t, r.refs, 1)
}

func TestListenerAcceptOn(t *testing.T) {
	r := newTestReactor(t, 8)
	defer r.Close()
	other := newTestReactor(t, 8)
	defer other.Close()

	ln, err := ListenConfig{ReusePort: true, Backlog: 16}.Listen(r, "127.0.0.1", 0)
	MustNil(t, err)
	defer ln.Release()

	client, err := net.Dial("tcp", ln.Addr().String())
	MustNil(t, err)
	defer client.Close()

	conn, err := BlockOn(r, func() (*Socket, error) {
		conn, peer, err := ln.AcceptOn(other)
		if err != nil {
			return nil, err
		}
		Equal(t, peer.String(), client.LocalAddr().String())
		return conn, nil
	})
	MustNil(t, err)
	MustTrue(t, conn.Reactor() == other)
	Equal(t, other.refs, 2)

	_, err = client.Write([]byte("moved"))
	MustNil(t, err)
	got, err := BlockOn(other, func() (string, error) {
		defer conn.Close()
		buf := make([]byte, 16)
		n, err := conn.Recv(buf, 0)
		return string(buf[:n]), err
	})
	MustNil(t, err)
	Equal(t, got, "moved")
	Equal(t, other.refs, 1)
}
