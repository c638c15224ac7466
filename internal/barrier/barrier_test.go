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

package barrier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegisterWait_BlocksUntilReleased(t *testing.T) {
	q := New()
	w := q.Register()

	released := make(chan struct{})
	go func() {
		w.Wait()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("waiter returned before ReleaseAll was called")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, 1, q.ReleaseAll())

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("waiter did not return after ReleaseAll")
	}
}

func TestReleaseAll_EmptiesQueueAndSignalsEveryWaiterOnce(t *testing.T) {
	q := New()

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)

	waiters := make([]*Waiter, n)
	for i := range waiters {
		waiters[i] = q.Register()
	}
	assert.Equal(t, n, q.Len())

	for _, w := range waiters {
		w := w
		go func() {
			defer wg.Done()
			w.Wait()
		}()
	}

	released := q.ReleaseAll()
	assert.Equal(t, n, released)
	assert.Equal(t, 0, q.Len())

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all waiters were released")
	}
}

func TestReleaseAll_OnEmptyQueueIsNoop(t *testing.T) {
	q := New()
	assert.Equal(t, 0, q.ReleaseAll())
}

func TestRegisterAfterRelease_WaitsForNextRelease(t *testing.T) {
	q := New()
	q.ReleaseAll()

	w := q.Register()
	select {
	case <-w.done:
		t.Fatal("a freshly registered waiter must not already be released")
	default:
	}

	q.ReleaseAll()
	w.Wait() // must return promptly
}
