// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaticWorkerPool_Success(t *testing.T) {
	tests := []struct {
		name            string
		priorityWorkers uint32
		normalWorkers   uint32
	}{
		{"both_lanes", 5, 10},
		{"priority_lane_only", 1, 0},
		{"normal_lane_only", 0, 8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pool, err := NewStaticWorkerPool(tc.priorityWorkers, tc.normalWorkers)

			require.NoError(t, err)
			require.NotNil(t, pool)
			pool.Stop()
		})
	}
}

func TestNewStaticWorkerPool_RejectsZeroWorkers(t *testing.T) {
	pool, err := NewStaticWorkerPool(0, 0)

	assert.Error(t, err)
	assert.Nil(t, pool)
	pool.Stop() // Stop on a nil pool is a safe no-op.
}

func TestSchedule_RunsEveryTask(t *testing.T) {
	pool, err := NewStaticWorkerPool(1, 4)
	require.NoError(t, err)

	const tasks = 100
	var ran atomic.Int64
	var wg sync.WaitGroup
	wg.Add(tasks)

	for i := 0; i < tasks; i++ {
		pool.Schedule(func() {
			ran.Add(1)
			wg.Done()
		})
	}
	wg.Wait()

	assert.EqualValues(t, tasks, ran.Load())
	pool.Stop()
}

func TestSchedulePriority_RunsEvenWhenNormalLaneIsBusy(t *testing.T) {
	pool, err := NewStaticWorkerPool(1, 1)
	require.NoError(t, err)

	// Occupy the single normal worker for the duration of the test.
	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	pool.Schedule(func() {
		wg.Done()
		<-block
	})
	wg.Wait()

	done := make(chan struct{})
	pool.SchedulePriority(func() { close(done) })
	<-done

	close(block)
	pool.Stop()
}

func TestStop_DrainsQueuedTasksBeforeReturning(t *testing.T) {
	pool, err := NewStaticWorkerPool(1, 1)
	require.NoError(t, err)

	const tasks = 50
	var ran atomic.Int64
	for i := 0; i < tasks; i++ {
		pool.Schedule(func() { ran.Add(1) })
	}
	pool.Stop()

	assert.EqualValues(t, tasks, ran.Load())
}
