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
)

// TransmitterMetrics contains the metrics reported by a transmitter. Any
// field can be nil.
type TransmitterMetrics struct {
	// SentPackets counts the datagrams written to the destination.
	SentPackets metrics.Counter
	// SentBytes counts the payload bytes written to the destination.
	SentBytes metrics.Counter
	// SendErrors counts failed datagram writes.
	SendErrors metrics.Counter
	// LaggedPackets counts the datagrams lost because the transmitter fell
	// behind the bus.
	LaggedPackets metrics.Counter
}

// Transmitter subscribes to the bus and forwards every packet to a single
// destination address.
//
// Run and Close are safe to call from different goroutines. Run returns once
// the transmitter is closed or the bus shuts down.
type Transmitter struct {
	// Dest is the destination address. Required.
	Dest netip.AddrPort
	// Bus is the packet source. The transmitter subscribes when it starts
	// running. Required.
	Bus *Bus
	// Logger is used for logging. If nil, nothing is logged.
	Logger log.Logger
	// Metrics are the metrics reported by the transmitter.
	Metrics TransmitterMetrics

	workerBase worker.Base

	mtx  sync.Mutex
	conn *net.UDPConn
	sub  *Subscription
}

// Run starts the forwarding loop. It returns when the transmitter is closed
// or the bus shuts down, or with an error if the socket cannot be opened.
func (t *Transmitter) Run(ctx context.Context) error {
	return t.workerBase.RunWrapper(ctx, t.setup, t.run)
}

// Close stops the transmitter. It is idempotent.
func (t *Transmitter) Close(ctx context.Context) error {
	return t.workerBase.CloseWrapper(ctx, func(ctx context.Context) error {
		t.mtx.Lock()
		defer t.mtx.Unlock()
		if t.sub != nil {
			t.sub.Cancel()
		}
		if t.conn != nil {
			return t.conn.Close()
		}
		return nil
	})
}

func (t *Transmitter) setup(ctx context.Context) error {
	conn, err := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(t.Dest))
	if err != nil {
		return serrors.Wrap("opening transmit socket", err, "dest", t.Dest)
	}
	sub := t.Bus.Subscribe()
	if sub == nil {
		conn.Close()
		return ErrBusClosed
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	select {
	case <-t.workerBase.GetDoneChan():
		sub.Cancel()
		conn.Close()
		return serrors.New("transmitter closed during setup")
	default:
	}
	t.conn = conn
	t.sub = sub
	return nil
}

func (t *Transmitter) run(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	if t.Logger != nil {
		logger = t.Logger
	}
	logger.Debug("Transmitter started", "dest", t.Dest)

	for {
		pkt, err := t.sub.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrLagged):
				metrics.CounterInc(t.Metrics.LaggedPackets)
				logger.Error("Dropped packets, transmitter too slow",
					"dest", t.Dest, "err", err)
				continue
			case errors.Is(err, ErrBusClosed):
				logger.Debug("Transmitter stopped, bus closed", "dest", t.Dest)
				return nil
			case errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded):
				return nil
			default:
				return serrors.Wrap("receiving from bus", err, "dest", t.Dest)
			}
		}
		n, err := t.conn.Write(pkt.Payload)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("Transmitter stopped", "dest", t.Dest)
				return nil
			}
			metrics.CounterInc(t.Metrics.SendErrors)
			logger.Error("Sending datagram", "dest", t.Dest, "err", err)
			continue
		}
		metrics.CounterInc(t.Metrics.SentPackets)
		metrics.CounterAdd(t.Metrics.SentBytes, float64(n))
	}
}
