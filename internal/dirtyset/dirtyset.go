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

// Package dirtyset implements the Dirty Set: the collection of files
// with a pending revision waiting for the next commit tick. Enqueue
// deduplication is the caller's responsibility (a per-file dirty flag,
// as vfile.VersionedFile keeps) — the set itself is a simple ordered
// queue guarded by its own domain, a leaf in the lock-ordering chain.
package dirtyset

import "sync"

// Entry is anything that can be committed by the scheduler. vfile.
// VersionedFile and the clock file both satisfy it through small
// adapters in their owning packages. It is a plain alias (not a
// defined type) so that callers can express a sink with an ordinary
// `Enqueue(any)` method instead of importing this package just to
// name the parameter type.
type Entry = any

// Set is the Dirty Set: a FIFO queue of dirty entries. It does not
// check for duplicates; distinctness comes from its callers.
type Set struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty Set.
func New() *Set {
	return &Set{}
}

// Enqueue appends e to the set. Callers are expected to only call this
// once per file per tick (see the dirty-flag discipline in vfile).
func (s *Set) Enqueue(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Drain removes and returns every entry currently queued, leaving the
// set empty. Safe to call even if Enqueue races concurrently with it;
// entries enqueued after Drain takes its snapshot remain for the next
// call.
func (s *Set) Drain() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := s.entries
	s.entries = nil
	return drained
}

// Len reports the number of entries currently queued, for metrics.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
