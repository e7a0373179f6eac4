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

package config

const relaySample = `# Identifier of the relay instance, used in logs. (default "udplex")
id = "%s"

# UDP port to receive datagrams on. Must be set.
receive_port = 9000

# Local interfaces to receive datagrams on. At least one entry is required.
receive_interfaces = ["eth0"]

# Local interfaces whose first IPv4 address receives relayed datagrams on
# receive_port.
transmit_interfaces = ["eth1"]

# Explicit ip:port destinations for relayed datagrams.
transmit_addresses = ["192.168.1.255:9000"]

# IPv4 CIDR networks whose datagrams are not relayed.
block_networks = []

# IPv4 CIDR networks exempt from block_networks.
allow_networks = []

# Number of datagrams buffered per destination before the oldest is
# discarded. (default 32)
bus_capacity = 32

# Size of the datagram receive buffer in bytes. (default 65535)
receive_buffer_size = 65535
`
