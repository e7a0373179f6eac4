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
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udplex/udplex/relay/dataplane"
)

func testPacket(i int) dataplane.Packet {
	return dataplane.Packet{
		Payload: []byte(fmt.Sprintf("packet-%d", i)),
		Src:     netip.MustParseAddrPort("10.0.0.1:5000"),
	}
}

func TestBusPublishNoSubscribers(t *testing.T) {
	bus := dataplane.NewBus(4)
	n, err := bus.Publish(testPacket(0))
	assert.ErrorIs(t, err, dataplane.ErrNoSubscribers)
	assert.Equal(t, 0, n)
}

func TestBusDeliveryOrder(t *testing.T) {
	bus := dataplane.NewBus(4)
	sub := bus.Subscribe()
	require.NotNil(t, sub)

	for i := 0; i < 3; i++ {
		n, err := bus.Publish(testPacket(i))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		pkt, err := sub.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, testPacket(i), pkt)
	}
}

func TestBusFanOut(t *testing.T) {
	bus := dataplane.NewBus(4)
	subs := make([]*dataplane.Subscription, 3)
	for i := range subs {
		subs[i] = bus.Subscribe()
		require.NotNil(t, subs[i])
	}
	assert.Equal(t, 3, bus.Subscribers())

	n, err := bus.Publish(testPacket(7))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, sub := range subs {
		pkt, err := sub.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, testPacket(7), pkt)
	}
}

func TestBusNoDeliveryBeforeSubscription(t *testing.T) {
	bus := dataplane.NewBus(4)
	early := bus.Subscribe()
	require.NotNil(t, early)
	_, err := bus.Publish(testPacket(0))
	require.NoError(t, err)

	late := bus.Subscribe()
	require.NotNil(t, late)
	_, err = bus.Publish(testPacket(1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pkt, err := late.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, testPacket(1), pkt)
}

func TestBusLag(t *testing.T) {
	bus := dataplane.NewBus(2)
	sub := bus.Subscribe()
	require.NotNil(t, sub)

	for i := 0; i < 5; i++ {
		_, err := bus.Publish(testPacket(i))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The two oldest retained packets survive, three were discarded.
	_, err := sub.Receive(ctx)
	assert.ErrorIs(t, err, dataplane.ErrLagged)
	assert.Contains(t, err.Error(), "dropped=3")

	pkt, err := sub.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, testPacket(3), pkt)
	pkt, err = sub.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, testPacket(4), pkt)

	// The lag is reported only once per loss episode.
	_, err = bus.Publish(testPacket(5))
	require.NoError(t, err)
	pkt, err = sub.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, testPacket(5), pkt)
}

func TestBusClose(t *testing.T) {
	bus := dataplane.NewBus(4)
	sub := bus.Subscribe()
	require.NotNil(t, sub)
	_, err := bus.Publish(testPacket(0))
	require.NoError(t, err)

	bus.Close()
	bus.Close()

	_, err = bus.Publish(testPacket(1))
	assert.ErrorIs(t, err, dataplane.ErrBusClosed)
	assert.Nil(t, bus.Subscribe())

	// Buffered packets are drained before the closed bus is reported.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pkt, err := sub.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, testPacket(0), pkt)
	_, err = sub.Receive(ctx)
	assert.ErrorIs(t, err, dataplane.ErrBusClosed)
}

func TestBusCancel(t *testing.T) {
	bus := dataplane.NewBus(4)
	sub := bus.Subscribe()
	other := bus.Subscribe()
	require.NotNil(t, sub)
	require.NotNil(t, other)

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 1, bus.Subscribers())

	n, err := bus.Publish(testPacket(0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	bus.Close()
}

func TestBusReceiveContextCancelled(t *testing.T) {
	bus := dataplane.NewBus(4)
	sub := bus.Subscribe()
	require.NotNil(t, sub)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Receive(ctx)
		errCh <- err
	}()
	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("receive did not observe cancellation")
	}
	bus.Close()
}
