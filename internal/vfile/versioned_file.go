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

// Package vfile implements the Versioned File: the per-file container
// holding the currently-visible revision and an optional pending
// revision awaiting the next commit. Readers keep being served the old
// visible revision while a writer builds the next one; the commit
// scheduler's swap is the only point where visibility changes.
package vfile

import (
	"github.com/jacobsa/syncutil"

	"github.com/geekmug/go-syncfs/internal/revision"
)

// DirtyMarker is notified the first time a Versioned File accumulates a
// pending revision since the last commit. Implementations enqueue the
// file in the owning Name Tree's dirty set. It is a callback rather
// than a global so that no package-wide singleton dirty set exists.
type DirtyMarker interface {
	MarkDirty(f *VersionedFile)
}

// VersionedFile holds a file's visible revision and, between commits,
// its pending revision.
//
// Two serialization domains guard it: visibility guards swaps of the
// visible slot (including refcount adjustments made while reading it);
// writer guards installation of a new pending revision. Lock ordering:
// writer before visibility.
type VersionedFile struct {
	blockSize int
	marker    DirtyMarker

	// visibility guards `visible` and refcount adjustments made against
	// it. GUARDED_BY(visibility)
	visibility syncutil.InvariantMutex
	visible    *revision.Revision

	// writer guards `pending` and `dirty`. GUARDED_BY(writer)
	writer  syncutil.InvariantMutex
	pending *revision.Revision
	dirty   bool

	destroyed bool
}

// New returns a VersionedFile with an empty visible revision.
func New(blockSize int, marker DirtyMarker) *VersionedFile {
	f := &VersionedFile{
		blockSize: blockSize,
		marker:    marker,
		visible:   revision.New(blockSize),
	}
	f.visibility = syncutil.NewInvariantMutex(f.checkVisibilityInvariants)
	f.writer = syncutil.NewInvariantMutex(f.checkWriterInvariants)
	return f
}

func (f *VersionedFile) checkVisibilityInvariants() {
	if f.destroyed {
		return
	}
	if f.visible == nil {
		panic("vfile: visible revision must be non-nil while the file exists")
	}
	if f.visible.Refcount() < 1 {
		panic("vfile: visible revision refcount must be >= 1")
	}
}

func (f *VersionedFile) checkWriterInvariants() {
	if f.pending != nil && f.pending.Refcount() != 1 {
		panic("vfile: pending revision refcount must be exactly 1 before commit")
	}
}

// Read acquires one reference to the visible revision under the
// visibility domain, copies bytes outside that domain, then releases
// the reference. It never blocks a concurrent writer installing a new
// pending revision.
func (f *VersionedFile) Read(offset int, dst []byte) int {
	f.visibility.Lock()
	v := f.visible
	v.Acquire()
	f.visibility.Unlock()

	n := v.ReadAt(offset, dst)

	f.visibility.Lock()
	v.Release()
	f.visibility.Unlock()

	return n
}

// Length returns the visible revision's current length.
func (f *VersionedFile) Length() int {
	f.visibility.Lock()
	defer f.visibility.Unlock()
	return f.visible.Length()
}

// Write constructs a fresh revision of length len(src) — a write
// always replaces the file's entire next revision, starting from
// empty — installs it as the pending revision, releasing any
// previously pending one, and records the file as dirty. A
// zero-length write is a no-op: no revision is allocated and the file
// is not enqueued.
func (f *VersionedFile) Write(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}

	next := revision.New(f.blockSize)
	if err := next.WriteAt(0, src); err != nil {
		return 0, err
	}

	f.writer.Lock()
	if f.pending != nil {
		f.pending.Release()
	}
	f.pending = next
	newlyDirty := !f.dirty
	f.dirty = true
	f.writer.Unlock()

	if newlyDirty && f.marker != nil {
		f.marker.MarkDirty(f)
	}

	return len(src), nil
}

// TruncateMetadata acquires a snapshot clone of the visible revision,
// adjusts its length, and installs the clone as the pending revision.
func (f *VersionedFile) TruncateMetadata(newLength int) error {
	f.visibility.Lock()
	v := f.visible
	v.Acquire()
	f.visibility.Unlock()

	clone, err := revision.SnapshotClone(v)

	f.visibility.Lock()
	v.Release()
	f.visibility.Unlock()

	if err != nil {
		return err
	}

	if err := clone.EnsureCapacity(newLength); err != nil {
		clone.Release()
		return err
	}
	clone.SetLength(newLength)

	f.writer.Lock()
	if f.pending != nil {
		f.pending.Release()
	}
	f.pending = clone
	newlyDirty := !f.dirty
	f.dirty = true
	f.writer.Unlock()

	if newlyDirty && f.marker != nil {
		f.marker.MarkDirty(f)
	}

	return nil
}

// TakePending removes and returns the pending revision (if any) and
// clears the dirty flag, for the commit scheduler's drain step. It
// acquires only the writer domain; the caller then installs the swap
// with Commit, which takes the visibility domain itself.
func (f *VersionedFile) TakePending() *revision.Revision {
	f.writer.Lock()
	defer f.writer.Unlock()

	p := f.pending
	f.pending = nil
	f.dirty = false
	return p
}

// Commit installs next as the visible revision, releasing the
// displaced one. It takes the file's visibility domain itself, so the
// commit scheduler calls it without holding that domain, after
// TakePending.
func (f *VersionedFile) Commit(next *revision.Revision) {
	f.visibility.Lock()
	defer f.visibility.Unlock()

	old := f.visible
	f.visible = next
	old.Release()
}

// DrainAndCommit takes the pending revision, if any, and installs it as
// the visible one. It is the commit scheduler's whole per-file drain
// step (TakePending + Commit) bundled behind a single call so that a
// dirty-set entry that also needs to stamp owning metadata (see
// internal/nametree's commit entry) can wrap it without duplicating the
// take-then-swap sequence.
func (f *VersionedFile) DrainAndCommit() {
	if pending := f.TakePending(); pending != nil {
		f.Commit(pending)
	}
}

// Destroy releases the visible revision and any pending revision. Both
// domains are taken so that no concurrent reader or writer can be
// mid-operation when the storage is freed.
func (f *VersionedFile) Destroy() {
	f.writer.Lock()
	f.visibility.Lock()

	if f.pending != nil {
		f.pending.Release()
		f.pending = nil
	}
	f.visible.Release()
	f.destroyed = true

	f.visibility.Unlock()
	f.writer.Unlock()
}
