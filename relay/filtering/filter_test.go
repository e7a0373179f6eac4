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

package filtering_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udplex/udplex/pkg/private/xtest"
	"github.com/udplex/udplex/relay/filtering"
)

func TestParsePrefixes(t *testing.T) {
	t.Parallel()
	testCases := map[string]struct {
		CIDRs     []string
		Prefixes  []netip.Prefix
		AssertErr assert.ErrorAssertionFunc
	}{
		"empty": {
			CIDRs:     nil,
			Prefixes:  []netip.Prefix{},
			AssertErr: assert.NoError,
		},
		"valid": {
			CIDRs: []string{"192.168.1.0/24", "10.0.0.0/8"},
			Prefixes: []netip.Prefix{
				netip.MustParsePrefix("192.168.1.0/24"),
				netip.MustParsePrefix("10.0.0.0/8"),
			},
			AssertErr: assert.NoError,
		},
		"host bits are masked": {
			CIDRs:     []string{"192.168.1.77/24"},
			Prefixes:  []netip.Prefix{netip.MustParsePrefix("192.168.1.0/24")},
			AssertErr: assert.NoError,
		},
		"garbage": {
			CIDRs:     []string{"not-a-network"},
			AssertErr: assert.Error,
		},
		"ipv6 rejected": {
			CIDRs:     []string{"2001:db8::/32"},
			AssertErr: assert.Error,
		},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			prefixes, err := filtering.ParsePrefixes(tc.CIDRs)
			tc.AssertErr(t, err)
			if err != nil {
				return
			}
			assert.Equal(t, tc.Prefixes, prefixes)
		})
	}
}

func TestAddressFilterCheck(t *testing.T) {
	t.Parallel()
	transmitAddrs := []netip.AddrPort{
		netip.MustParseAddrPort("192.168.1.10:9000"),
		netip.MustParseAddrPort("192.168.2.10:9000"),
	}
	blockNets := []netip.Prefix{netip.MustParsePrefix("192.168.1.0/24")}
	allowNets := []netip.Prefix{netip.MustParsePrefix("192.168.1.128/25")}

	filter, err := filtering.NewAddressFilter(transmitAddrs, blockNets, allowNets)
	require.NoError(t, err)

	testCases := map[string]struct {
		Src     netip.AddrPort
		Verdict filtering.Verdict
	}{
		"transmit address is a storm": {
			Src:     netip.MustParseAddrPort("192.168.1.10:9000"),
			Verdict: filtering.DropStorm,
		},
		"transmit address beats allow list": {
			Src:     netip.MustParseAddrPort("192.168.2.10:9000"),
			Verdict: filtering.DropStorm,
		},
		"same ip different port is not a storm": {
			Src:     netip.MustParseAddrPort("192.168.2.10:9001"),
			Verdict: filtering.Transmit,
		},
		"blocked network": {
			Src:     netip.MustParseAddrPort("192.168.1.20:5000"),
			Verdict: filtering.DropBlocked,
		},
		"allow overrides block": {
			Src:     netip.MustParseAddrPort("192.168.1.200:5000"),
			Verdict: filtering.Transmit,
		},
		"unlisted source": {
			Src:     netip.MustParseAddrPort("10.1.2.3:4444"),
			Verdict: filtering.Transmit,
		},
		"ipv4-mapped source normalized": {
			Src:     xtest.MustParseAddrPort(t, "[::ffff:192.168.1.10]:9000"),
			Verdict: filtering.DropStorm,
		},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.Verdict, filter.Check(tc.Src))
			assert.Equal(t, tc.Verdict == filtering.Transmit, filter.ShouldTransmit(tc.Src))
		})
	}
}

func TestAddressFilterAllowOnlyInsideBlock(t *testing.T) {
	t.Parallel()
	// An allow list entry without a covering block entry changes nothing,
	// sources outside all lists are relayed either way.
	filter, err := filtering.NewAddressFilter(
		nil,
		nil,
		[]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	)
	require.NoError(t, err)
	assert.Equal(t, filtering.Transmit, filter.Check(netip.MustParseAddrPort("10.0.0.1:1000")))
	assert.Equal(t, filtering.Transmit, filter.Check(netip.MustParseAddrPort("172.16.0.1:1000")))
}

func TestAddressFilterEmptyLists(t *testing.T) {
	t.Parallel()
	filter, err := filtering.NewAddressFilter(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, filtering.Transmit, filter.Check(netip.MustParseAddrPort("1.2.3.4:5")))
}

func TestVerdictString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "transmit", filtering.Transmit.String())
	assert.Equal(t, "storm", filtering.DropStorm.String())
	assert.Equal(t, "blocked", filtering.DropBlocked.String())
}
