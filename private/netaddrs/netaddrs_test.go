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

package netaddrs_test

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udplex/udplex/private/netaddrs"
)

func TestIPv4Addrs(t *testing.T) {
	t.Parallel()
	testCases := map[string]struct {
		Addrs []net.Addr
		IPs   []netip.Addr
	}{
		"empty": {},
		"ipv4 only": {
			Addrs: []net.Addr{
				&net.IPNet{IP: net.IPv4(192, 168, 1, 10), Mask: net.CIDRMask(24, 32)},
				&net.IPNet{IP: net.IPv4(10, 0, 0, 1), Mask: net.CIDRMask(8, 32)},
			},
			IPs: []netip.Addr{
				netip.MustParseAddr("192.168.1.10"),
				netip.MustParseAddr("10.0.0.1"),
			},
		},
		"ipv6 skipped": {
			Addrs: []net.Addr{
				&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
				&net.IPNet{IP: net.IPv4(192, 168, 1, 10), Mask: net.CIDRMask(24, 32)},
			},
			IPs: []netip.Addr{netip.MustParseAddr("192.168.1.10")},
		},
		"non ipnet skipped": {
			Addrs: []net.Addr{
				&net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 80},
			},
		},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.IPs, netaddrs.IPv4Addrs(tc.Addrs))
		})
	}
}

func TestResolveUnknownInterface(t *testing.T) {
	t.Parallel()
	_, err := netaddrs.Resolve([]string{"does-not-exist-0"}, 9000)
	assert.Error(t, err)
}

func TestResolveLoopback(t *testing.T) {
	t.Parallel()
	// Find a loopback interface that carries 127.0.0.1 so the test works
	// regardless of how the host names it.
	ifaces, err := net.Interfaces()
	require.NoError(t, err)
	name := ""
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 {
			name = ifi.Name
			break
		}
	}
	if name == "" {
		t.Skip("no loopback interface")
	}
	addrs, err := netaddrs.Resolve([]string{name}, 9000)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, uint16(9000), addrs[0].Port())
	assert.True(t, addrs[0].Addr().Is4())
}

func TestResolveEmpty(t *testing.T) {
	t.Parallel()
	addrs, err := netaddrs.Resolve(nil, 9000)
	require.NoError(t, err)
	assert.Empty(t, addrs)
}
