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

// Package revision implements the reference-counted, immutable-after-
// publish byte buffer that backs every file's visible and pending
// content. A Revision is constructed, mutated while its refcount is 1,
// and then published: once installed as a Versioned File's visible or
// pending slot and shared with a second holder, it must not be mutated
// again until every holder has released it and the buffer is freed.
package revision

import (
	"errors"
	"sync/atomic"
)

// ErrNoSpace is returned by EnsureCapacity when the requested buffer
// cannot be allocated. It maps to the core's NoSpace error kind.
var ErrNoSpace = errors.New("revision: allocation failed")

// liveCount tracks how many Revisions are currently alive (constructed
// and not yet fully released), for the metrics endpoint.
var liveCount atomic.Int64

// LiveCount reports the number of Revisions currently alive across all
// files: visible, pending, and under construction.
func LiveCount() int64 {
	return liveCount.Load()
}

// Revision is a refcounted buffer of bytes. The zero value is not
// useful; construct with New.
//
// INVARIANT: 0 <= length <= cap(buf)
// INVARIANT: cap(buf) is always a multiple of blockSize
// INVARIANT: refcount >= 0; refcount == 0 implies buf == nil
type Revision struct {
	blockSize int
	refcount  int
	length    int
	buf       []byte
}

// New returns an empty Revision (length 0, capacity 0) with refcount 1,
// rounding future growth to blockSize. blockSize must be positive.
func New(blockSize int) *Revision {
	if blockSize <= 0 {
		blockSize = 1
	}
	liveCount.Add(1)
	return &Revision{
		blockSize: blockSize,
		refcount:  1,
	}
}

// Acquire increments the reference count.
//
// REQUIRES: r.refcount > 0
func (r *Revision) Acquire() {
	if r.refcount <= 0 {
		panic("revision: Acquire on a freed Revision")
	}
	r.refcount++
}

// Release decrements the reference count, freeing the buffer once it
// reaches zero.
//
// REQUIRES: r.refcount > 0
func (r *Revision) Release() {
	if r.refcount <= 0 {
		panic("revision: Release on a freed Revision")
	}
	r.refcount--
	if r.refcount == 0 {
		r.buf = nil
		liveCount.Add(-1)
	}
}

// Refcount returns the current reference count, for tests and
// invariant checks.
func (r *Revision) Refcount() int {
	return r.refcount
}

// Length returns the logical length L.
func (r *Revision) Length() int {
	return r.length
}

// Capacity returns the buffer capacity C.
func (r *Revision) Capacity() int {
	return cap(r.buf)
}

// EnsureCapacity enlarges the buffer so that its capacity is at least n,
// rounded up to the configured block size, preserving bytes in [0, L).
//
// REQUIRES: r.refcount == 1 (a Revision shared with another holder must
// never be resized in place)
func (r *Revision) EnsureCapacity(n int) error {
	if r.refcount != 1 {
		panic("revision: EnsureCapacity called on a shared Revision")
	}
	if n <= cap(r.buf) {
		return nil
	}

	rounded := roundUp(n, r.blockSize)
	nb, err := allocate(rounded)
	if err != nil {
		return ErrNoSpace
	}
	copy(nb, r.buf[:r.length])
	r.buf = nb
	return nil
}

func allocate(n int) (buf []byte, err error) {
	defer func() {
		if recover() != nil {
			buf = nil
			err = ErrNoSpace
		}
	}()
	return make([]byte, n), nil
}

func roundUp(n, blockSize int) int {
	if n <= 0 {
		return 0
	}
	blocks := (n + blockSize - 1) / blockSize
	return blocks * blockSize
}

// SetLength sets the logical length, zero-filling newly exposed bytes
// on growth. The caller must have already ensured capacity >= length.
//
// REQUIRES: r.refcount == 1
// REQUIRES: length <= cap(r.buf)
func (r *Revision) SetLength(length int) {
	if r.refcount != 1 {
		panic("revision: SetLength called on a shared Revision")
	}
	if length > cap(r.buf) {
		panic("revision: SetLength beyond capacity")
	}

	if length > len(r.buf) {
		grown := r.buf[:length]
		for i := len(r.buf); i < length; i++ {
			grown[i] = 0
		}
		r.buf = grown
	} else {
		r.buf = r.buf[:length]
	}
	r.length = length
}

// WriteAt copies src into the buffer starting at offset, growing the
// buffer (and zero-filling any gap) as needed.
//
// REQUIRES: r.refcount == 1
func (r *Revision) WriteAt(offset int, src []byte) error {
	if r.refcount != 1 {
		panic("revision: WriteAt called on a shared Revision")
	}
	end := offset + len(src)
	if err := r.EnsureCapacity(end); err != nil {
		return err
	}
	if end > r.length {
		r.SetLength(end)
	}
	copy(r.buf[offset:end], src)
	return nil
}

// ReadAt copies min(len(dst), max(0, L-offset)) bytes starting at
// offset into dst and returns the number of bytes copied. Reading past
// end-of-file is not an error; it returns 0.
func (r *Revision) ReadAt(offset int, dst []byte) int {
	if offset < 0 || offset >= r.length {
		return 0
	}
	n := copy(dst, r.buf[offset:r.length])
	return n
}

// Bytes returns the logical content as a slice. Callers must not retain
// or mutate it beyond the Revision's own lifetime discipline.
func (r *Revision) Bytes() []byte {
	return r.buf[:r.length]
}

// SnapshotClone produces a new Revision with refcount 1 whose length
// equals source's length and whose bytes in [0, L) are a copy of
// source's, rounded to blockSize.
func SnapshotClone(source *Revision) (*Revision, error) {
	clone := New(source.blockSize)
	if source.length == 0 {
		return clone, nil
	}
	if err := clone.EnsureCapacity(source.length); err != nil {
		return nil, err
	}
	clone.SetLength(source.length)
	copy(clone.buf, source.buf[:source.length])
	return clone, nil
}
