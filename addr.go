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
	"strings"

	"golang.org/x/sys/unix"
)

// Resolver resolves a host name into candidate addresses, *net.Resolver implements it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// resolve returns the socket addresses of host:port usable on network, in resolution order.
// An empty host is the unspecified address.
func resolve(ctx context.Context, res Resolver, network, host string, port int) ([]unix.Sockaddr, error) {
	if network == "unix" || network == "unixgram" {
		return []unix.Sockaddr{&unix.SockaddrUnix{Name: host}}, nil
	}
	if _, err := sockType(network); err != nil {
		return nil, err
	}
	var ipaddrs []net.IPAddr
	switch {
	case host == "":
		if strings.HasSuffix(network, "6") {
			ipaddrs = []net.IPAddr{{IP: net.IPv6unspecified}}
		} else {
			ipaddrs = []net.IPAddr{{IP: net.IPv4zero}}
		}
	case net.ParseIP(host) != nil:
		ipaddrs = []net.IPAddr{{IP: net.ParseIP(host)}}
	default:
		if res == nil {
			res = net.DefaultResolver
		}
		var err error
		if ipaddrs, err = res.LookupIPAddr(ctx, host); err != nil {
			return nil, err
		}
	}
	sas := make([]unix.Sockaddr, 0, len(ipaddrs))
	for _, ipaddr := range ipaddrs {
		if sa := ipToSockaddr(network, ipaddr, port); sa != nil {
			sas = append(sas, sa)
		}
	}
	if len(sas) == 0 {
		return nil, Exception(ErrNoAddress, host)
	}
	return sas, nil
}

func ipToSockaddr(network string, ipaddr net.IPAddr, port int) unix.Sockaddr {
	wants4 := strings.HasSuffix(network, "4")
	wants6 := strings.HasSuffix(network, "6")
	if ip4 := ipaddr.IP.To4(); ip4 != nil {
		if wants6 {
			return nil
		}
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa
	}
	if ip6 := ipaddr.IP.To16(); ip6 != nil && !wants4 {
		sa := &unix.SockaddrInet6{Port: port}
		copy(sa.Addr[:], ip6)
		if ipaddr.Zone != "" {
			if ifi, err := net.InterfaceByName(ipaddr.Zone); err == nil {
				sa.ZoneId = uint32(ifi.Index)
			}
		}
		return sa
	}
	return nil
}

func sockType(network string) (int, error) {
	switch network {
	case "tcp", "tcp4", "tcp6", "unix":
		return unix.SOCK_STREAM, nil
	case "udp", "udp4", "udp6", "unixgram":
		return unix.SOCK_DGRAM, nil
	}
	return 0, net.UnknownNetworkError(network)
}

func sockDomain(sa unix.Sockaddr) int {
	switch sa.(type) {
	case *unix.SockaddrInet4:
		return unix.AF_INET
	case *unix.SockaddrInet6:
		return unix.AF_INET6
	case *unix.SockaddrUnix:
		return unix.AF_UNIX
	}
	return unix.AF_UNSPEC
}

// sockaddrToAddr converts sa into the net.Addr of a socket of type typ.
func sockaddrToAddr(sa unix.Sockaddr, typ int) net.Addr {
	var ip net.IP
	var port int
	var zone string
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip, port = append(net.IP(nil), sa.Addr[:]...), sa.Port
	case *unix.SockaddrInet6:
		ip, port = append(net.IP(nil), sa.Addr[:]...), sa.Port
		if sa.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				zone = ifi.Name
			}
		}
	case *unix.SockaddrUnix:
		if typ == unix.SOCK_DGRAM {
			return &net.UnixAddr{Name: sa.Name, Net: "unixgram"}
		}
		return &net.UnixAddr{Name: sa.Name, Net: "unix"}
	default:
		return nil
	}
	if typ == unix.SOCK_DGRAM {
		return &net.UDPAddr{IP: ip, Port: port, Zone: zone}
	}
	return &net.TCPAddr{IP: ip, Port: port, Zone: zone}
}
