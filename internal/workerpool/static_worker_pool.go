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

// Package workerpool implements a fixed-size goroutine pool. Two lanes
// are maintained: a priority lane (SchedulePriority) for work that must
// not queue behind ordinary traffic, and a normal lane (Schedule) for
// everything else. Lane sizes are fixed for the life of the pool;
// cmd/server.go sizes the normal lane from the -w startup flag and
// schedules each accepted connection on it.
package workerpool

import (
	"errors"
	"sync"
)

// Task is a unit of work submitted to the pool.
type Task func()

// Pool is a pair of statically-sized worker lanes.
type Pool struct {
	priority *lane
	normal   *lane
}

type lane struct {
	tasks chan Task
	wg    sync.WaitGroup
}

func newLane(workers uint32, queueDepth int) *lane {
	l := &lane{tasks: make(chan Task, queueDepth)}
	l.wg.Add(int(workers))
	for i := uint32(0); i < workers; i++ {
		go func() {
			defer l.wg.Done()
			for task := range l.tasks {
				task()
			}
		}()
	}
	return l
}

func (l *lane) stop() {
	close(l.tasks)
	l.wg.Wait()
}

// NewStaticWorkerPool starts priorityWorkers + normalWorkers goroutines.
// At least one worker, in either lane, is required.
func NewStaticWorkerPool(priorityWorkers, normalWorkers uint32) (*Pool, error) {
	if priorityWorkers == 0 && normalWorkers == 0 {
		return nil, errors.New("workerpool: at least one priority or normal worker is required")
	}

	p := &Pool{
		priority: newLane(priorityWorkers, 64),
		normal:   newLane(normalWorkers, 256),
	}
	return p, nil
}

// Schedule enqueues task on the normal lane. It blocks if the normal
// lane's queue is full.
func (p *Pool) Schedule(task Task) {
	p.normal.tasks <- task
}

// SchedulePriority enqueues task on the priority lane. Use this only for
// operations that must never queue behind ordinary file-server traffic.
func (p *Pool) SchedulePriority(task Task) {
	p.priority.tasks <- task
}

// Stop closes both lanes and waits for their workers to drain and exit.
// Stop is a no-op, safe to call, on a nil Pool so callers can defer it
// unconditionally after a failed NewStaticWorkerPool.
func (p *Pool) Stop() {
	if p == nil {
		return
	}
	p.priority.stop()
	p.normal.stop()
}
