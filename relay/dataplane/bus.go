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

// Package dataplane moves datagrams from receivers to transmitters.
package dataplane

import (
	"context"
	"net/netip"
	"sync"

	"github.com/udplex/udplex/pkg/private/serrors"
)

// DefaultCapacity is the default per-subscriber buffer capacity of the bus.
const DefaultCapacity = 32

// Bus errors.
var (
	// ErrBusClosed is returned once a closed bus has no more buffered
	// packets to deliver.
	ErrBusClosed = serrors.New("bus closed")
	// ErrNoSubscribers is returned by Publish if no subscription exists.
	ErrNoSubscribers = serrors.New("no subscribers")
	// ErrLagged is returned by Receive if the subscriber was too slow and
	// buffered packets were discarded. The error carries the number of
	// discarded packets; receiving again continues with the oldest retained
	// packet.
	ErrLagged = serrors.New("subscriber lagged")
)

// Packet is a datagram together with the source it was received from.
type Packet struct {
	// Payload is the datagram contents. Publishers hand over ownership, the
	// slice must not be modified after publishing.
	Payload []byte
	// Src is the address the datagram was received from.
	Src netip.AddrPort
}

// Bus broadcasts packets to all current subscribers. Each subscriber has its
// own bounded buffer. Publishing never blocks: if a subscriber's buffer is
// full, its oldest packet is discarded to make room and the subscriber is
// informed about the loss on its next receive. Packets published before a
// subscription existed are never delivered to it.
type Bus struct {
	mtx      sync.Mutex
	capacity int
	subs     []*Subscription
	closed   bool
}

// NewBus creates a bus with the given per-subscriber buffer capacity. A
// capacity below 1 is replaced by DefaultCapacity.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Bus{capacity: capacity}
}

// Publish delivers the packet to all current subscribers and returns their
// number. Publish never blocks on slow subscribers.
func (b *Bus) Publish(pkt Packet) (int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return 0, ErrBusClosed
	}
	if len(b.subs) == 0 {
		return 0, ErrNoSubscribers
	}
	for _, sub := range b.subs {
		sub.push(pkt)
	}
	return len(b.subs), nil
}

// Subscribe registers a new subscriber. It returns nil if the bus is
// already closed.
func (b *Bus) Subscribe() *Subscription {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return nil
	}
	sub := &Subscription{
		bus:  b,
		ch:   make(chan Packet, b.capacity),
		done: make(chan struct{}),
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Subscribers returns the current number of subscribers.
func (b *Bus) Subscribers() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return len(b.subs)
}

// Close shuts the bus down. Publishing fails afterwards, and subscribers
// observe ErrBusClosed once their buffered packets are drained. Close is
// idempotent.
func (b *Bus) Close() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.done)
	}
	b.subs = nil
}

// Subscription is a single subscriber's view of the bus. It must not be
// shared between goroutines.
type Subscription struct {
	bus  *Bus
	ch   chan Packet
	done chan struct{}

	// Guarded by the bus mutex.
	dropped   uint64
	cancelled bool
}

// push appends the packet to the subscriber's buffer, discarding the oldest
// buffered packet if the buffer is full. Called with the bus mutex held,
// which makes it the only concurrent writer of ch.
func (s *Subscription) push(pkt Packet) {
	for {
		select {
		case s.ch <- pkt:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped++
		default:
		}
	}
}

// Receive returns the next packet. If packets were discarded because this
// subscriber lagged behind, it returns ErrLagged with the number of lost
// packets instead, exactly once per loss episode. It returns ErrBusClosed
// once the bus is closed and the buffer is drained, and the context error if
// ctx is done first.
func (s *Subscription) Receive(ctx context.Context) (Packet, error) {
	s.bus.mtx.Lock()
	if s.dropped > 0 {
		n := s.dropped
		s.dropped = 0
		s.bus.mtx.Unlock()
		return Packet{}, serrors.Join(ErrLagged, nil, "dropped", n)
	}
	s.bus.mtx.Unlock()

	select {
	case pkt := <-s.ch:
		return pkt, nil
	default:
	}
	select {
	case pkt := <-s.ch:
		return pkt, nil
	case <-s.done:
		// Drain remaining packets before reporting the closed bus.
		select {
		case pkt := <-s.ch:
			return pkt, nil
		default:
			return Packet{}, ErrBusClosed
		}
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	}
}

// Cancel removes the subscription from the bus. It is idempotent and safe
// to call after the bus was closed.
func (s *Subscription) Cancel() {
	s.bus.mtx.Lock()
	defer s.bus.mtx.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.bus.closed {
		return
	}
	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}
	close(s.done)
}
