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

// Package filtering decides which datagram sources are eligible for
// relaying.
package filtering

import (
	"net/netip"

	"go4.org/netipx"
)

// Verdict is the outcome of a filter check.
type Verdict int

// Filter check outcomes.
const (
	// Transmit means the datagram should be relayed.
	Transmit Verdict = iota
	// DropStorm means the source is one of the relay's own transmit
	// addresses. Relaying it would loop the datagram back through the relay.
	DropStorm
	// DropBlocked means the source falls in a blocked network and no allowed
	// network overrides the block.
	DropBlocked
)

func (v Verdict) String() string {
	switch v {
	case Transmit:
		return "transmit"
	case DropStorm:
		return "storm"
	case DropBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// AddressFilter checks datagram source addresses against the transmit
// address set and the block/allow network lists. The filter is immutable
// after construction and safe for concurrent use.
type AddressFilter struct {
	transmitAddrs map[netip.AddrPort]struct{}
	blockNets     *netipx.IPSet
	allowNets     *netipx.IPSet
}

// NewAddressFilter creates a filter that rejects the given transmit
// addresses outright, and rejects sources inside the blocked networks unless
// an allowed network also contains them.
func NewAddressFilter(
	transmitAddrs []netip.AddrPort,
	blockNets []netip.Prefix,
	allowNets []netip.Prefix,
) (*AddressFilter, error) {

	set := make(map[netip.AddrPort]struct{}, len(transmitAddrs))
	for _, a := range transmitAddrs {
		set[normalize(a)] = struct{}{}
	}
	blocked, err := buildIPSet(blockNets)
	if err != nil {
		return nil, err
	}
	allowed, err := buildIPSet(allowNets)
	if err != nil {
		return nil, err
	}
	return &AddressFilter{
		transmitAddrs: set,
		blockNets:     blocked,
		allowNets:     allowed,
	}, nil
}

// Check classifies the source address of a received datagram.
func (f *AddressFilter) Check(src netip.AddrPort) Verdict {
	src = normalize(src)
	if _, ok := f.transmitAddrs[src]; ok {
		return DropStorm
	}
	if f.blockNets.Contains(src.Addr()) && !f.allowNets.Contains(src.Addr()) {
		return DropBlocked
	}
	return Transmit
}

// ShouldTransmit reports whether a datagram from src should be relayed.
func (f *AddressFilter) ShouldTransmit(src netip.AddrPort) bool {
	return f.Check(src) == Transmit
}

// normalize strips IPv4-in-IPv6 mapping so that addresses compare equal
// regardless of how the socket layer reported them.
func normalize(a netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(a.Addr().Unmap(), a.Port())
}
