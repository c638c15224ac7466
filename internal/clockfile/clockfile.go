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

// Package clockfile renders the distinguished /clock file's content
// and wires its stat operation to the Clock Barrier Queue. The
// announced length is always the length of the freshly rendered JSON
// record, recomputed every tick rather than reserving a fixed-size
// field.
package clockfile

import (
	"fmt"

	"github.com/geekmug/go-syncfs/internal/barrier"
	"github.com/geekmug/go-syncfs/internal/nametree"
)

// ClockFile binds a Name Tree node to the tick counter and the Clock
// Barrier Queue.
type ClockFile struct {
	node     *nametree.Node
	queue    *barrier.Queue
	interval int64 // nanoseconds
	tick     uint64
}

// New returns a ClockFile rendering records with the given tick
// interval in nanoseconds.
func New(node *nametree.Node, queue *barrier.Queue, intervalNanos int64) *ClockFile {
	return &ClockFile{node: node, queue: queue, interval: intervalNanos}
}

// Tick renders the next record `{"clock":T,"interval":P}\n`, installs
// it as the node's pending revision (via its Versioned File, so it
// joins the dirty set exactly like any other write), and advances T.
// An allocation failure here is non-fatal: the tick number still
// advances and barriers still release.
func (c *ClockFile) Tick() error {
	record := fmt.Sprintf("{\"clock\":%d,\"interval\":%d}\n", c.tick, c.interval)
	_, err := c.node.File().Write([]byte(record))
	c.tick++
	return err
}

// TickCount returns the number of records Tick has rendered so far,
// which is also the T the next record will carry.
func (c *ClockFile) TickCount() uint64 {
	return c.tick
}

// Stat implements the clock file's special stat behavior: register a
// fresh waiter, block until the next commit releases it, then return a
// snapshot of the post-tick metadata. It is the only operation in the
// system that may suspend indefinitely.
func (c *ClockFile) Stat(tree *nametree.Tree) nametree.Stat {
	w := c.queue.Register()
	w.Wait()
	return tree.Stat(c.node)
}
