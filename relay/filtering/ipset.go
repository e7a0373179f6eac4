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

package filtering

import (
	"net/netip"

	"go4.org/netipx"

	"github.com/udplex/udplex/pkg/private/serrors"
)

// ParsePrefixes parses a list of CIDR strings into prefixes. Only IPv4
// prefixes are accepted.
func ParsePrefixes(cidrs []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, s := range cidrs {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, serrors.Wrap("parsing network", err, "network", s)
		}
		if !p.Addr().Unmap().Is4() {
			return nil, serrors.New("not an IPv4 network", "network", s)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes, nil
}

// buildIPSet constructs a set from the given prefixes for fast containment
// checks.
func buildIPSet(prefixes []netip.Prefix) (*netipx.IPSet, error) {
	var b netipx.IPSetBuilder
	for _, p := range prefixes {
		b.AddPrefix(p)
	}
	set, err := b.IPSet()
	if err != nil {
		return nil, serrors.Wrap("building IP set", err)
	}
	return set, nil
}
