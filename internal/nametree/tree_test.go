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

package nametree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekmug/go-syncfs/internal/dirtyset"
)

func newTestTree() *Tree {
	return New(4096, nil, 99, 99)
}

func TestNew_RootIsItsOwnParent(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()
	assert.Equal(t, ID(0), root.ID())
	assert.Same(t, root, root.parent)
}

func TestCreate_AssignsMonotonicIDs(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	a, err := tr.Create(root, "a", 0644, 1, 1)
	require.NoError(t, err)
	b, err := tr.Create(root, "b", 0644, 1, 1)
	require.NoError(t, err)

	assert.Less(t, a.ID(), b.ID())
}

func TestCreate_RejectsDuplicateSiblingName(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	_, err := tr.Create(root, "dup", 0644, 1, 1)
	require.NoError(t, err)

	_, err = tr.Create(root, "dup", 0644, 1, 1)
	assert.ErrorIs(t, err, ErrExist)
}

func TestCreate_RejectsHardLinkMode(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	_, err := tr.Create(root, "link", 0644|ModeHardLink, 1, 1)
	assert.ErrorIs(t, err, ErrPerm)
}

func TestEnumerate_ReturnsChildrenInCreationOrder(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	names := []string{"one", "two", "three"}
	for _, n := range names {
		_, err := tr.Create(root, n, 0644, 1, 1)
		require.NoError(t, err)
	}

	children := tr.Enumerate(root)
	require.Len(t, children, 3)
	for i, n := range names {
		assert.Equal(t, n, children[i].name)
	}
}

func TestRemove_SplicesOutAndClearsParent(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	a, err := tr.Create(root, "a", 0644, 1, 1)
	require.NoError(t, err)

	require.NoError(t, tr.Remove(root, a))
	assert.Empty(t, tr.Enumerate(root))

	a.Lock()
	parent := a.parent
	a.mu.Unlock()
	assert.Nil(t, parent)
}

func TestStat_ReportsNameModeAndLength(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	n, err := tr.Create(root, "f", 0644, 5, 6)
	require.NoError(t, err)

	_, err = n.File().Write([]byte("hello"))
	require.NoError(t, err)
	n.File().Commit(n.File().TakePending())

	st := tr.Stat(n)
	assert.Equal(t, "f", st.Name)
	assert.Equal(t, uint32(5), st.UID)
	assert.Equal(t, 5, st.Length)
}

func TestWriteStat_RenameCollisionFailsAndLeavesNameUnchanged(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	a, err := tr.Create(root, "a", 0644, 1, 1)
	require.NoError(t, err)
	_, err = tr.Create(root, "b", 0644, 1, 1)
	require.NoError(t, err)

	err = tr.WriteStat(root, a, ProposedStat{Name: "b"})
	assert.ErrorIs(t, err, ErrExist)

	st := tr.Stat(a)
	assert.Equal(t, "a", st.Name)
}

func TestWriteStat_RenameToSameNameSucceeds(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	a, err := tr.Create(root, "a", 0644, 1, 1)
	require.NoError(t, err)

	err = tr.WriteStat(root, a, ProposedStat{Name: "a"})
	assert.NoError(t, err)
}

func TestWriteStat_LengthChangeAppliesTruncate(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	a, err := tr.Create(root, "a", 0644, 1, 1)
	require.NoError(t, err)
	_, err = a.File().Write([]byte("0123456789"))
	require.NoError(t, err)
	a.File().Commit(a.File().TakePending())

	newLen := 3
	err = tr.WriteStat(root, a, ProposedStat{Length: &newLen})
	require.NoError(t, err)
	a.File().Commit(a.File().TakePending())

	assert.Equal(t, 3, a.File().Length())
}

func TestClunk_DestroysNodeOnceRemovedAndUnreferenced(t *testing.T) {
	tr := newTestTree()
	root := tr.Root()

	a, err := tr.Create(root, "a", 0644, 1, 1)
	require.NoError(t, err)
	tr.Open(a) // simulate an open handle: lookupCount now 2

	require.NoError(t, tr.Remove(root, a))
	// Removing drops the parent's implicit reference; the open handle's
	// reference still keeps it alive.
	a.Lock()
	count := a.lookupCount
	a.mu.Unlock()
	assert.Equal(t, uint64(1), count)

	tr.Clunk(a, 1)
	a.Lock()
	count = a.lookupCount
	a.mu.Unlock()
	assert.Equal(t, uint64(0), count)
}

// TestDirtySetEntry_StampsNodeMTimeOnDrain exercises the path the commit
// scheduler actually drives: a write enqueues a commitEntry, not a bare
// *vfile.VersionedFile, so that draining it also stamps the owning
// node's modification time.
func TestDirtySetEntry_StampsNodeMTimeOnDrain(t *testing.T) {
	dirty := dirtyset.New()
	tr := New(16, dirty, 1, 1)
	root := tr.Root()

	n, err := tr.Create(root, "f", 0644, 1, 1)
	require.NoError(t, err)
	before := tr.Stat(n).MTime

	time.Sleep(time.Millisecond)
	_, err = n.File().Write([]byte("hi"))
	require.NoError(t, err)

	drained := dirty.Drain()
	require.Len(t, drained, 1)
	entry, ok := drained[0].(interface{ DrainAndCommit() })
	require.True(t, ok)
	entry.DrainAndCommit()

	after := tr.Stat(n).MTime
	assert.True(t, after.After(before))
	assert.Equal(t, 2, n.File().Length())
}
