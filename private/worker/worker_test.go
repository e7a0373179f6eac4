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

package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/udplex/udplex/pkg/private/xtest"
	"github.com/udplex/udplex/private/worker"
)

func TestWorker(t *testing.T) {
	t.Run("double run", func(t *testing.T) {
		t.Parallel()
		w := &blockingWorker{}

		var bg errgroup.Group
		bg.Go(w.Run)
		time.Sleep(50 * time.Millisecond)
		assert.Error(t, w.Run())
		assert.NoError(t, w.Close())
		assert.NoError(t, bg.Wait())
	})

	t.Run("double run without callbacks", func(t *testing.T) {
		t.Parallel()
		w := &emptyWorker{}

		var bg errgroup.Group
		bg.Go(w.Run)
		time.Sleep(50 * time.Millisecond)
		assert.Error(t, w.Run())
		assert.NoError(t, w.Close())
		assert.NoError(t, bg.Wait())
	})

	t.Run("close before run", func(t *testing.T) {
		t.Parallel()
		w := &blockingWorker{}

		require.NoError(t, w.Close())
		assert.NoError(t, w.Run())
		assert.False(t, w.setupDone)
	})

	t.Run("double close", func(t *testing.T) {
		t.Parallel()
		w := &blockingWorker{}

		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
	})

	t.Run("close unblocks run", func(t *testing.T) {
		t.Parallel()
		w := &blockingWorker{}

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			assert.NoError(t, w.Run())
		}()
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, w.Close())
		xtest.AssertReadReturnsBefore(t, finished, time.Second)
	})
}

// blockingWorker runs until it is closed.
type blockingWorker struct {
	wb        worker.Base
	setupDone bool
}

func (w *blockingWorker) Run() error {
	return w.wb.RunWrapper(context.Background(), w.setup, w.run)
}

func (w *blockingWorker) setup(ctx context.Context) error {
	w.setupDone = true
	return nil
}

func (w *blockingWorker) run(ctx context.Context) error {
	<-w.wb.GetDoneChan()
	return nil
}

func (w *blockingWorker) Close() error {
	return w.wb.CloseWrapper(context.Background(), nil)
}

// emptyWorker exercises the wrappers with nil callbacks.
type emptyWorker struct {
	wb worker.Base
}

func (w *emptyWorker) Run() error {
	return w.wb.RunWrapper(context.Background(), nil, nil)
}

func (w *emptyWorker) Close() error {
	return w.wb.CloseWrapper(context.Background(), nil)
}
