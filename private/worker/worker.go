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

// Package worker contains helpers for working with long-running goroutines
// that need to be stopped from the outside.
package worker

import (
	"context"
	"sync"

	"github.com/udplex/udplex/pkg/private/serrors"
)

// Base provides basic operations for objects designed to run as goroutines,
// with the following properties: Run can be called at most once; calling
// Close before Run means Run is a no-op; Close is idempotent and can be
// called at any time.
//
// Base is a low-level mechanism and the exported methods are wrappers. The
// embedding type provides its own Run and Close methods that call the
// wrappers with the appropriate callbacks.
type Base struct {
	mtx sync.Mutex
	// runCalled is set if Run was called at least once.
	runCalled bool
	// closeCalled is set if Close was called at least once.
	closeCalled bool
	// doneChan is closed once Close is called.
	doneChan chan struct{}
}

// RunWrapper runs setup and then run, if the worker was not closed yet. If
// setup returns an error, run is not executed. RunWrapper returns an error if
// called more than once.
func (wb *Base) RunWrapper(ctx context.Context, setup, run func(ctx context.Context) error) error {
	wb.mtx.Lock()
	if wb.runCalled {
		wb.mtx.Unlock()
		return serrors.New("run called more than once")
	}
	wb.runCalled = true
	wb.ensureInitializedLocked()
	if wb.closeCalled {
		wb.mtx.Unlock()
		return nil
	}
	wb.mtx.Unlock()

	if setup != nil {
		if err := setup(ctx); err != nil {
			return err
		}
	}
	if run == nil {
		return nil
	}
	return run(ctx)
}

// CloseWrapper closes the done channel and executes closeFn, exactly once.
// Subsequent calls are no-ops returning nil.
func (wb *Base) CloseWrapper(ctx context.Context, closeFn func(ctx context.Context) error) error {
	wb.mtx.Lock()
	defer wb.mtx.Unlock()
	if wb.closeCalled {
		return nil
	}
	wb.closeCalled = true
	wb.ensureInitializedLocked()
	close(wb.doneChan)
	if closeFn != nil {
		return closeFn(ctx)
	}
	return nil
}

// GetDoneChan returns a channel that is closed once Close is called.
func (wb *Base) GetDoneChan() <-chan struct{} {
	wb.mtx.Lock()
	defer wb.mtx.Unlock()
	wb.ensureInitializedLocked()
	return wb.doneChan
}

func (wb *Base) ensureInitializedLocked() {
	if wb.doneChan == nil {
		wb.doneChan = make(chan struct{})
	}
}
