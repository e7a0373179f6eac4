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

package dataplane_test

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udplex/udplex/pkg/log/testlog"
	"github.com/udplex/udplex/pkg/private/xtest"
	"github.com/udplex/udplex/relay/dataplane"
)

// listener is a loopback UDP socket that collects received payloads.
type listener struct {
	conn *net.UDPConn
	addr netip.AddrPort
}

func newListener(t *testing.T) *listener {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &listener{
		conn: conn,
		addr: conn.LocalAddr().(*net.UDPAddr).AddrPort(),
	}
}

func (l *listener) read(t *testing.T) []byte {
	t.Helper()
	require.NoError(t, l.conn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 1500)
	n, _, err := l.conn.ReadFromUDPAddrPort(buf)
	require.NoError(t, err)
	return buf[:n]
}

// startTransmitter runs the transmitter and waits until it is subscribed.
func startTransmitter(t *testing.T, tr *dataplane.Transmitter, wantSubs int) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, tr.Run(context.Background()))
	}()
	t.Cleanup(func() {
		assert.NoError(t, tr.Close(context.Background()))
		xtest.AssertReadReturnsBefore(t, done, time.Second)
	})
	require.Eventually(t, func() bool {
		return tr.Bus.Subscribers() >= wantSubs
	}, time.Second, 5*time.Millisecond)
}

func TestTransmitterForwards(t *testing.T) {
	bus := dataplane.NewBus(8)
	defer bus.Close()
	l := newListener(t)

	tr := &dataplane.Transmitter{
		Dest:   l.addr,
		Bus:    bus,
		Logger: testlog.NewLogger(t),
	}
	startTransmitter(t, tr, 1)

	_, err := bus.Publish(dataplane.Packet{
		Payload: []byte("payload"),
		Src:     netip.MustParseAddrPort("10.0.0.1:5000"),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), l.read(t))
}

func TestTransmitterFanOut(t *testing.T) {
	bus := dataplane.NewBus(8)
	defer bus.Close()

	listeners := make([]*listener, 3)
	for i := range listeners {
		listeners[i] = newListener(t)
		tr := &dataplane.Transmitter{
			Dest:   listeners[i].addr,
			Bus:    bus,
			Logger: testlog.NewLogger(t),
		}
		startTransmitter(t, tr, i+1)
	}

	n, err := bus.Publish(dataplane.Packet{
		Payload: []byte("broadcast"),
		Src:     netip.MustParseAddrPort("10.0.0.1:5000"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, l := range listeners {
		assert.Equal(t, []byte("broadcast"), l.read(t))
	}
}

func TestTransmitterStopsOnBusClose(t *testing.T) {
	bus := dataplane.NewBus(8)
	l := newListener(t)

	tr := &dataplane.Transmitter{
		Dest:   l.addr,
		Bus:    bus,
		Logger: testlog.NewLogger(t),
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, tr.Run(context.Background()))
	}()
	require.Eventually(t, func() bool {
		return bus.Subscribers() == 1
	}, time.Second, 5*time.Millisecond)

	bus.Close()
	xtest.AssertReadReturnsBefore(t, done, time.Second)
	assert.NoError(t, tr.Close(context.Background()))
}

func TestTransmitterCloseBeforeRun(t *testing.T) {
	tr := &dataplane.Transmitter{
		Dest:   netip.MustParseAddrPort("127.0.0.1:19999"),
		Bus:    dataplane.NewBus(8),
		Logger: testlog.NewLogger(t),
	}
	require.NoError(t, tr.Close(context.Background()))
	assert.NoError(t, tr.Run(context.Background()))
}
