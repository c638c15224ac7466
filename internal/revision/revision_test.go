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

package revision

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyAndRefcountOne(t *testing.T) {
	r := New(4096)
	assert.Equal(t, 1, r.Refcount())
	assert.Equal(t, 0, r.Length())
	assert.Equal(t, 0, r.Capacity())
}

func TestAcquireRelease_FreesBufferAtZero(t *testing.T) {
	r := New(16)
	require.NoError(t, r.WriteAt(0, []byte("hello")))

	r.Acquire()
	assert.Equal(t, 2, r.Refcount())

	r.Release()
	assert.Equal(t, 1, r.Refcount())
	assert.Equal(t, 5, r.Length(), "buffer survives while a reference remains")

	r.Release()
	assert.Equal(t, 0, r.Refcount())
}

func TestEnsureCapacity_RoundsUpToBlockSize(t *testing.T) {
	r := New(512)
	require.NoError(t, r.EnsureCapacity(10))
	assert.Equal(t, 512, r.Capacity())

	require.NoError(t, r.EnsureCapacity(600))
	assert.Equal(t, 1024, r.Capacity())
}

func TestEnsureCapacity_PreservesExistingBytes(t *testing.T) {
	r := New(16)
	require.NoError(t, r.WriteAt(0, []byte("abc")))
	require.NoError(t, r.EnsureCapacity(1000))
	assert.Equal(t, "abc", string(r.Bytes()))
}

func TestEnsureCapacity_AllocationFailureReturnsNoSpace(t *testing.T) {
	r := New(16)
	require.NoError(t, r.WriteAt(0, []byte("keep")))

	// A request near MaxInt cannot be satisfied by any allocator.
	err := r.EnsureCapacity(math.MaxInt)
	assert.ErrorIs(t, err, ErrNoSpace)

	// The revision is untouched by the failed grow.
	assert.Equal(t, 4, r.Length())
	assert.Equal(t, "keep", string(r.Bytes()))
}

func TestEnsureCapacity_PanicsWhenShared(t *testing.T) {
	r := New(16)
	r.Acquire()
	assert.Panics(t, func() { _ = r.EnsureCapacity(100) })
}

func TestWriteAt_ZeroFillsGap(t *testing.T) {
	r := New(16)
	require.NoError(t, r.WriteAt(4, []byte("xy")))

	assert.Equal(t, 6, r.Length())
	assert.Equal(t, []byte{0, 0, 0, 0, 'x', 'y'}, r.Bytes())
}

func TestReadAt_PastEndOfFileReturnsZero(t *testing.T) {
	r := New(16)
	require.NoError(t, r.WriteAt(0, []byte("hi")))

	buf := make([]byte, 10)
	n := r.ReadAt(100, buf)
	assert.Equal(t, 0, n)
}

func TestReadAt_PartialRead(t *testing.T) {
	r := New(16)
	require.NoError(t, r.WriteAt(0, []byte("hello world")))

	buf := make([]byte, 5)
	n := r.ReadAt(6, buf)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf[:n]))
}

func TestSnapshotClone_CopiesLengthAndBytesIndependently(t *testing.T) {
	src := New(16)
	require.NoError(t, src.WriteAt(0, []byte("source")))

	clone, err := SnapshotClone(src)
	require.NoError(t, err)

	assert.Equal(t, 1, clone.Refcount())
	assert.Equal(t, src.Length(), clone.Length())
	assert.Equal(t, "source", string(clone.Bytes()))

	require.NoError(t, clone.WriteAt(0, []byte("CHANGED")))
	assert.Equal(t, "source", string(src.Bytes()), "mutating the clone must not affect the source")
}

func TestLiveCount_TracksConstructionAndFinalRelease(t *testing.T) {
	before := LiveCount()

	r := New(16)
	assert.Equal(t, before+1, LiveCount())

	clone, err := SnapshotClone(r)
	require.NoError(t, err)
	assert.Equal(t, before+2, LiveCount())

	// An extra reference does not change liveness; only the final
	// release does.
	r.Acquire()
	r.Release()
	assert.Equal(t, before+2, LiveCount())

	r.Release()
	clone.Release()
	assert.Equal(t, before, LiveCount())
}

func TestSnapshotClone_OfEmptyRevision(t *testing.T) {
	src := New(16)
	clone, err := SnapshotClone(src)
	require.NoError(t, err)
	assert.Equal(t, 0, clone.Length())
}
