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

// Package relay implements a UDP datagram relay. Datagrams received on any
// of the listen addresses are checked against an address filter and
// forwarded to every destination.
package relay

import (
	"cmp"
	"context"
	"errors"
	"net/netip"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udplex/udplex/pkg/log"
	pkgmetrics "github.com/udplex/udplex/pkg/metrics"
	"github.com/udplex/udplex/pkg/private/serrors"
	"github.com/udplex/udplex/relay/dataplane"
	"github.com/udplex/udplex/relay/filtering"
)

// Relay ties receivers, the address filter, the distribution bus and
// transmitters together.
type Relay struct {
	// ListenAddrs are the local addresses to receive datagrams on. Required.
	ListenAddrs []netip.AddrPort
	// Destinations are the addresses every relayed datagram is sent to.
	// Duplicates are removed. Required.
	Destinations []netip.AddrPort
	// BlockNetworks are the networks whose datagrams are not relayed.
	BlockNetworks []netip.Prefix
	// AllowNetworks are the networks exempt from BlockNetworks.
	AllowNetworks []netip.Prefix
	// BusCapacity is the per-destination packet buffer size. If 0, the
	// default capacity is used.
	BusCapacity int
	// ReceiveBufferSize is the size of the datagram receive buffer. If 0,
	// the default size is used.
	ReceiveBufferSize int
	// Logger is used for logging. If nil, nothing is logged.
	Logger log.Logger
	// Metrics are the metrics reported by the relay. If nil, no metrics are
	// reported.
	Metrics *Metrics
}

// Run starts the relay and blocks until ctx is cancelled or a component
// fails to start. A cancelled context is a clean shutdown, not an error.
func (r *Relay) Run(ctx context.Context) error {
	if len(r.ListenAddrs) == 0 {
		return serrors.New("no listen addresses")
	}
	if len(r.Destinations) == 0 {
		return serrors.New("no destinations")
	}
	destinations := dedupe(r.Destinations)

	// Datagrams originating from any destination must not be relayed again,
	// otherwise two relays can bounce traffic between each other forever.
	filter, err := filtering.NewAddressFilter(
		destinations, r.BlockNetworks, r.AllowNetworks)
	if err != nil {
		return err
	}
	bus := dataplane.NewBus(r.BusCapacity)

	transmitters := make([]*dataplane.Transmitter, 0, len(destinations))
	for _, dest := range destinations {
		transmitters = append(transmitters, &dataplane.Transmitter{
			Dest:    dest,
			Bus:     bus,
			Logger:  r.Logger,
			Metrics: r.Metrics.transmitterMetrics(dest),
		})
	}
	receivers := make([]*dataplane.Receiver, 0, len(r.ListenAddrs))
	for _, addr := range r.ListenAddrs {
		receivers = append(receivers, &dataplane.Receiver{
			Addr:       addr,
			Bus:        bus,
			Filter:     filter,
			Logger:     r.Logger,
			BufferSize: r.ReceiveBufferSize,
			Metrics:    r.Metrics.receiverMetrics(addr),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	closersDone := make(chan struct{})
	go func() {
		defer log.HandlePanic()
		defer close(closersDone)
		<-gctx.Done()
		for _, rcv := range receivers {
			if err := rcv.Close(context.Background()); err != nil {
				r.log("Closing receiver", "addr", rcv.Addr, "err", err)
			}
		}
		for _, t := range transmitters {
			if err := t.Close(context.Background()); err != nil {
				r.log("Closing transmitter", "dest", t.Dest, "err", err)
			}
		}
		bus.Close()
	}()

	for _, t := range transmitters {
		t := t
		g.Go(func() error {
			defer log.HandlePanic()
			return t.Run(gctx)
		})
	}
	if err := r.waitSubscribed(gctx, bus, len(transmitters)); err != nil {
		// A transmitter failed during setup, surface its error.
		<-closersDone
		if werr := g.Wait(); werr != nil {
			return werr
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if r.Metrics != nil {
		r.Metrics.Subscribers.WithLabelValues().Set(float64(bus.Subscribers()))
	}

	for _, rcv := range receivers {
		rcv := rcv
		g.Go(func() error {
			defer log.HandlePanic()
			return rcv.Run(gctx)
		})
	}

	err = g.Wait()
	<-closersDone
	return err
}

// waitSubscribed blocks until all transmitters have joined the bus, so that
// no datagram received during startup misses a destination.
func (r *Relay) waitSubscribed(ctx context.Context, bus *dataplane.Bus, n int) error {
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for bus.Subscribers() < n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

func (r *Relay) log(msg string, ctx ...any) {
	if r.Logger != nil {
		r.Logger.Error(msg, ctx...)
	}
}

func dedupe(addrs []netip.AddrPort) []netip.AddrPort {
	c := slices.Clone(addrs)
	slices.SortFunc(c, func(a, b netip.AddrPort) int {
		if d := a.Addr().Compare(b.Addr()); d != 0 {
			return d
		}
		return cmp.Compare(a.Port(), b.Port())
	})
	return slices.Compact(c)
}

func (m *Metrics) receiverMetrics(addr netip.AddrPort) dataplane.ReceiverMetrics {
	if m == nil {
		return dataplane.ReceiverMetrics{}
	}
	a := addr.String()
	return dataplane.ReceiverMetrics{
		ReceivedPackets:       pkgmetrics.NewPromCounter(m.PktsReceivedTotal, a),
		ReceivedBytes:         pkgmetrics.NewPromCounter(m.PktBytesReceivedTotal, a),
		StormPacketsDropped:   pkgmetrics.NewPromCounter(m.PktsDiscardedTotal, a, filtering.DropStorm.String()),
		BlockedPacketsDropped: pkgmetrics.NewPromCounter(m.PktsDiscardedTotal, a, filtering.DropBlocked.String()),
		ReadErrors:            pkgmetrics.NewPromCounter(m.ReceiveErrorsTotal, a),
	}
}

func (m *Metrics) transmitterMetrics(dest netip.AddrPort) dataplane.TransmitterMetrics {
	if m == nil {
		return dataplane.TransmitterMetrics{}
	}
	d := dest.String()
	return dataplane.TransmitterMetrics{
		SentPackets:   pkgmetrics.NewPromCounter(m.PktsSentTotal, d),
		SentBytes:     pkgmetrics.NewPromCounter(m.PktBytesSentTotal, d),
		SendErrors:    pkgmetrics.NewPromCounter(m.SendErrorsTotal, d),
		LaggedPackets: pkgmetrics.NewPromCounter(m.PktsLaggedTotal, d),
	}
}
