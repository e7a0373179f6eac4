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

package dataplane

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/udplex/udplex/pkg/log"
	"github.com/udplex/udplex/pkg/metrics"
	"github.com/udplex/udplex/pkg/private/serrors"
	"github.com/udplex/udplex/private/worker"
	"github.com/udplex/udplex/relay/filtering"
)

// DefaultReceiveBufferSize is the size of the receive buffer if none is
// configured. It fits the largest possible UDP payload.
const DefaultReceiveBufferSize = 65535

// ReceiverMetrics contains the metrics reported by a receiver. Any field can
// be nil.
type ReceiverMetrics struct {
	// ReceivedPackets counts the datagrams read from the socket.
	ReceivedPackets metrics.Counter
	// ReceivedBytes counts the payload bytes read from the socket.
	ReceivedBytes metrics.Counter
	// StormPacketsDropped counts datagrams dropped because their source is a
	// transmit address of this relay.
	StormPacketsDropped metrics.Counter
	// BlockedPacketsDropped counts datagrams dropped by the block list.
	BlockedPacketsDropped metrics.Counter
	// ReadErrors counts transient socket read errors.
	ReadErrors metrics.Counter
}

// Receiver reads datagrams from a single UDP listen address, filters them
// and publishes the survivors on the bus.
//
// Run and Close are safe to call from different goroutines. Run returns once
// the receiver is closed.
type Receiver struct {
	// Addr is the local address to listen on. Required.
	Addr netip.AddrPort
	// Bus is where accepted packets are published. Required.
	Bus *Bus
	// Filter classifies datagram sources. Required.
	Filter *filtering.AddressFilter
	// Logger is used for logging. If nil, nothing is logged.
	Logger log.Logger
	// BufferSize is the size of the receive buffer. If 0, it defaults to
	// DefaultReceiveBufferSize.
	BufferSize int
	// Metrics are the metrics reported by the receiver.
	Metrics ReceiverMetrics

	workerBase worker.Base

	mtx  sync.Mutex
	conn *net.UDPConn
}

// Run starts the receive loop. It returns when the receiver is closed, or
// with an error if the listen socket cannot be opened.
func (r *Receiver) Run(ctx context.Context) error {
	return r.workerBase.RunWrapper(ctx, r.setup, r.run)
}

// Close stops the receiver. It is idempotent.
func (r *Receiver) Close(ctx context.Context) error {
	return r.workerBase.CloseWrapper(ctx, func(ctx context.Context) error {
		r.mtx.Lock()
		defer r.mtx.Unlock()
		if r.conn != nil {
			return r.conn.Close()
		}
		return nil
	})
}

// BoundAddr returns the address the receiver is listening on. It is only
// valid after Run has opened the socket, and is useful when listening on a
// wildcard port.
func (r *Receiver) BoundAddr() netip.AddrPort {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.conn == nil {
		return netip.AddrPort{}
	}
	return r.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (r *Receiver) setup(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(r.Addr))
	if err != nil {
		return serrors.Wrap("listening", err, "addr", r.Addr)
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	select {
	case <-r.workerBase.GetDoneChan():
		conn.Close()
		return serrors.New("receiver closed during setup")
	default:
	}
	r.conn = conn
	return nil
}

func (r *Receiver) run(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	if r.Logger != nil {
		logger = r.Logger
	}
	logger.Debug("Receiver started", "addr", r.BoundAddr())

	buf := make([]byte, r.bufferSize())
	for {
		n, src, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("Receiver stopped", "addr", r.Addr)
				return nil
			}
			metrics.CounterInc(r.Metrics.ReadErrors)
			logger.Error("Reading from socket", "addr", r.Addr, "err", err)
			continue
		}
		metrics.CounterInc(r.Metrics.ReceivedPackets)
		metrics.CounterAdd(r.Metrics.ReceivedBytes, float64(n))

		// Only IPv4 traffic is relayed.
		if !src.Addr().Unmap().Is4() {
			logger.Debug("Dropping non-IPv4 datagram", "src", src)
			continue
		}
		switch verdict := r.Filter.Check(src); verdict {
		case filtering.Transmit:
		case filtering.DropStorm:
			metrics.CounterInc(r.Metrics.StormPacketsDropped)
			logger.Debug("Dropping datagram", "reason", verdict, "src", src)
			continue
		case filtering.DropBlocked:
			metrics.CounterInc(r.Metrics.BlockedPacketsDropped)
			logger.Debug("Dropping datagram", "reason", verdict, "src", src)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		if _, err := r.Bus.Publish(Packet{Payload: payload, Src: src}); err != nil {
			if errors.Is(err, ErrBusClosed) {
				return nil
			}
			// No subscriber exists, the datagram has nowhere to go.
			logger.Debug("Discarding datagram", "src", src, "err", err)
		}
	}
}

func (r *Receiver) bufferSize() int {
	if r.BufferSize > 0 {
		return r.BufferSize
	}
	return DefaultReceiveBufferSize
}
