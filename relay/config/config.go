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

// Package config describes the configuration of the udplex relay.
package config

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/udplex/udplex/pkg/log"
	"github.com/udplex/udplex/pkg/private/serrors"
	"github.com/udplex/udplex/private/config"
	"github.com/udplex/udplex/private/env"
	"github.com/udplex/udplex/relay/dataplane"
	"github.com/udplex/udplex/relay/filtering"
)

// DefaultID is the relay instance ID if none is configured.
const DefaultID = "udplex"

var _ config.Config = (*Config)(nil)

// Config is the configuration for the udplex relay.
type Config struct {
	Logging log.Config  `toml:"log,omitempty"`
	Metrics env.Metrics `toml:"metrics,omitempty"`
	Relay   Relay       `toml:"relay,omitempty"`
}

// InitDefaults initializes the default values for all parts of the config.
func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Relay,
	)
}

// Validate validates all parts of the config.
func (cfg *Config) Validate() error {
	return config.ValidateAll(
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Relay,
	)
}

// Sample writes a sample config to the writer.
func (cfg *Config) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteSample(dst, path, ctx,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Relay,
	)
}

var _ config.Config = (*Relay)(nil)

// Relay is the configuration of the relay dataplane.
type Relay struct {
	// ID is the instance identifier used in logs.
	ID string `toml:"id,omitempty"`
	// ReceivePort is the UDP port to listen on, on every receive interface.
	ReceivePort uint16 `toml:"receive_port,omitempty"`
	// ReceiveInterfaces are the names of the local interfaces to receive
	// datagrams on.
	ReceiveInterfaces []string `toml:"receive_interfaces,omitempty"`
	// TransmitInterfaces are the names of local interfaces whose broadcast
	// peers should receive relayed datagrams on ReceivePort.
	TransmitInterfaces []string `toml:"transmit_interfaces,omitempty"`
	// TransmitAddresses are explicit ip:port destinations for relayed
	// datagrams.
	TransmitAddresses []string `toml:"transmit_addresses,omitempty"`
	// BlockNetworks are IPv4 CIDR networks whose datagrams are not relayed.
	BlockNetworks []string `toml:"block_networks,omitempty"`
	// AllowNetworks are IPv4 CIDR networks exempt from BlockNetworks.
	AllowNetworks []string `toml:"allow_networks,omitempty"`
	// BusCapacity is the per-destination packet buffer size.
	BusCapacity int `toml:"bus_capacity,omitempty"`
	// ReceiveBufferSize is the size of the datagram receive buffer in bytes.
	ReceiveBufferSize int `toml:"receive_buffer_size,omitempty"`
}

// InitDefaults initializes unset fields to their default values.
func (cfg *Relay) InitDefaults() {
	if cfg.ID == "" {
		cfg.ID = DefaultID
	}
	if cfg.BusCapacity == 0 {
		cfg.BusCapacity = dataplane.DefaultCapacity
	}
	if cfg.ReceiveBufferSize == 0 {
		cfg.ReceiveBufferSize = dataplane.DefaultReceiveBufferSize
	}
}

// Validate checks that the relay has a port to listen on, somewhere to
// listen, somewhere to send, and parseable address lists.
func (cfg *Relay) Validate() error {
	if cfg.ReceivePort == 0 {
		return serrors.New("receive_port must be set")
	}
	if len(cfg.ReceiveInterfaces) == 0 {
		return serrors.New("at least one receive interface must be set")
	}
	if len(cfg.TransmitInterfaces) == 0 && len(cfg.TransmitAddresses) == 0 {
		return serrors.New("at least one transmit interface or address must be set")
	}
	if cfg.BusCapacity < 1 {
		return serrors.New("bus_capacity must be positive",
			"bus_capacity", cfg.BusCapacity)
	}
	if cfg.ReceiveBufferSize < 1 {
		return serrors.New("receive_buffer_size must be positive",
			"receive_buffer_size", cfg.ReceiveBufferSize)
	}
	if _, err := cfg.TransmitAddrs(); err != nil {
		return err
	}
	if _, err := cfg.BlockPrefixes(); err != nil {
		return err
	}
	if _, err := cfg.AllowPrefixes(); err != nil {
		return err
	}
	return nil
}

// TransmitAddrs parses the configured explicit transmit addresses.
func (cfg *Relay) TransmitAddrs() ([]netip.AddrPort, error) {
	addrs := make([]netip.AddrPort, 0, len(cfg.TransmitAddresses))
	for _, s := range cfg.TransmitAddresses {
		a, err := netip.ParseAddrPort(s)
		if err != nil {
			return nil, serrors.Wrap("parsing transmit address", err, "addr", s)
		}
		if !a.Addr().Unmap().Is4() {
			return nil, serrors.New("not an IPv4 transmit address", "addr", s)
		}
		addrs = append(addrs, netip.AddrPortFrom(a.Addr().Unmap(), a.Port()))
	}
	return addrs, nil
}

// BlockPrefixes parses the configured block networks.
func (cfg *Relay) BlockPrefixes() ([]netip.Prefix, error) {
	return filtering.ParsePrefixes(cfg.BlockNetworks)
}

// AllowPrefixes parses the configured allow networks.
func (cfg *Relay) AllowPrefixes() ([]netip.Prefix, error) {
	return filtering.ParsePrefixes(cfg.AllowNetworks)
}

// Sample writes the sample configuration to dst.
func (cfg *Relay) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteString(dst, fmt.Sprintf(relaySample, ctx[config.ID]))
}

// ConfigName returns the name this config should have in a TOML file.
func (cfg *Relay) ConfigName() string {
	return "relay"
}
