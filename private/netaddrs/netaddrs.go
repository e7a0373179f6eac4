// Copyright 2025 The udplex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package netaddrs resolves local network interface names to IPv4 addresses.
package netaddrs

import (
	"net"
	"net/netip"

	"github.com/udplex/udplex/pkg/private/serrors"
)

// Resolve maps interface names to addresses with the given port attached.
// Each name must refer to an existing local interface that carries at least
// one IPv4 address. The first IPv4 address of each interface is used.
func Resolve(names []string, port uint16) ([]netip.AddrPort, error) {
	addrs := make([]netip.AddrPort, 0, len(names))
	for _, name := range names {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, serrors.Wrap("looking up interface", err, "interface", name)
		}
		ifAddrs, err := ifi.Addrs()
		if err != nil {
			return nil, serrors.Wrap("listing interface addresses", err, "interface", name)
		}
		ips := IPv4Addrs(ifAddrs)
		if len(ips) == 0 {
			return nil, serrors.New("interface has no IPv4 address", "interface", name)
		}
		addrs = append(addrs, netip.AddrPortFrom(ips[0], port))
	}
	return addrs, nil
}

// IPv4Addrs extracts the IPv4 addresses from a list of interface addresses.
func IPv4Addrs(ifAddrs []net.Addr) []netip.Addr {
	var ips []netip.Addr
	for _, a := range ifAddrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if ip.Is4() {
			ips = append(ips, ip)
		}
	}
	return ips
}
