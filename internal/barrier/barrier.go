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

// Package barrier implements the Clock Barrier Queue: the rendezvous
// that a stat on /clock suspends in until the next commit tick
// completes. Each waiter gets a single-slot promise (a one-shot
// channel closed by the scheduler) registered under the queue's own
// domain and then waited on outside it, so the scheduler never needs
// a lock a blocked waiter is still holding.
package barrier

import "sync"

// Waiter is a one-shot promise; Wait returns once the commit scheduler
// has signalled it.
type Waiter struct {
	done chan struct{}
}

// Wait blocks until the next commit tick releases this waiter.
func (w *Waiter) Wait() {
	<-w.done
}

// Queue is the Clock Barrier Queue.
type Queue struct {
	mu      sync.Mutex
	waiters []*Waiter
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Register inserts a fresh waiter into the queue and returns it. The
// caller must call Wait on the returned Waiter outside of any domain
// the commit scheduler might need to acquire to signal it.
func (q *Queue) Register() *Waiter {
	w := &Waiter{done: make(chan struct{})}

	q.mu.Lock()
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	return w
}

// ReleaseAll signals every waiter currently in the queue exactly once
// and empties the queue, per the commit scheduler's per-tick contract.
func (q *Queue) ReleaseAll() int {
	q.mu.Lock()
	waiters := q.waiters
	q.waiters = nil
	q.mu.Unlock()

	for _, w := range waiters {
		close(w.done)
	}
	return len(waiters)
}

// Len reports the number of waiters currently queued, for metrics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}
