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

// Package nametree implements the Name Tree: the hierarchical
// namespace of directories and files. Node identifiers come from a
// single monotonic counter allocated under the tree's own domain,
// never a UUID, so identifiers always reflect creation order.
package nametree

import (
	"errors"
	"sync"
	"time"

	"github.com/geekmug/go-syncfs/internal/vfile"
)

// Sentinel errors mapped to the core's symbolic Kind by
// internal/fileserver.
var (
	ErrExist    = errors.New("nametree: name already exists")
	ErrNotExist = errors.New("nametree: node does not exist")
	ErrPerm     = errors.New("nametree: operation not permitted")
)

// ModeHardLink, if set in a create's requested mode, is rejected: the
// namespace does not support hard links.
const ModeHardLink Mode = 1 << 30

// dirtyNode adapts a Node's Versioned File into a vfile.DirtyMarker: it
// wraps whatever entry the versioned file reports dirty with the owning
// node, so the commit scheduler's drain step can stamp the node's
// modification time in the same pass that swaps the revision in.
type dirtyNode struct {
	node *Node
	sink DirtySink
}

func (d *dirtyNode) MarkDirty(f *vfile.VersionedFile) {
	if d.sink == nil {
		return
	}
	d.sink.Enqueue(&commitEntry{node: d.node, file: f})
}

// commitEntry is the dirty-set entry nametree hands the commit
// scheduler: installing the pending revision and stamping the node's
// mtime are one unit of work from the scheduler's point of view.
type commitEntry struct {
	node *Node
	file *vfile.VersionedFile
}

// DrainAndCommit satisfies the commit scheduler's committable interface
// structurally (no import needed in either direction): take the pending
// revision, install it, and if one existed, stamp the node's
// modification time to the commit wall clock under the node's own
// domain.
func (e *commitEntry) DrainAndCommit() {
	pending := e.file.TakePending()
	if pending == nil {
		return
	}
	e.file.Commit(pending)

	e.node.Lock()
	e.node.mtime = time.Now()
	e.node.Unlock()
}

// Tree is the Name Tree. It owns node-ID allocation and, through each
// node's parent pointer, the whole namespace.
//
// GUARDED_BY(mu): nextID. Per-directory child-list mutation is guarded
// by that directory's own Node.mu, per the lock-ordering discipline
// (parent directory domain is taken before any child node domain).
type Tree struct {
	blockSize int
	sink      DirtySink

	mu     sync.Mutex
	nextID ID

	root *Node
}

// DirtySink receives dirty-set entries produced by node writes. It is
// satisfied by *dirtyset.Set; kept as a narrow interface here so that
// nametree need not import dirtyset's concrete Entry type.
type DirtySink interface {
	Enqueue(e any)
}

// New returns a Tree containing only its root directory (mode 0755,
// owned by uid/gid).
func New(blockSize int, sink DirtySink, uid, gid uint32) *Tree {
	t := &Tree{blockSize: blockSize, sink: sink}

	now := time.Now()
	root := &Node{
		id:     0,
		name:   "/",
		mode:   ModeDir | 0755,
		uid:    uid,
		gid:    gid,
		modUID: uid,
		atime:  now,
		mtime:  now,
	}
	root.parent = root // root is its own parent; ascent from root stays at root.
	t.root = root
	t.nextID = 1

	return t
}

// Root returns the tree's root directory node.
func (t *Tree) Root() *Node {
	return t.root
}

func (t *Tree) allocID() ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	return id
}

// Create adds a new child named name to dir. Fails with ErrPerm if mode
// requests a hard link, ErrExist if the name collides with an existing
// sibling.
//
// REQUIRES: dir.mode.IsDir()
func (t *Tree) Create(dir *Node, name string, mode Mode, uid, gid uint32) (*Node, error) {
	if mode&ModeHardLink != 0 {
		return nil, ErrPerm
	}

	dir.Lock()
	defer dir.Unlock()

	for _, c := range dir.children {
		if c.name == name {
			return nil, ErrExist
		}
	}

	now := time.Now()
	n := &Node{
		id:     t.allocID(),
		name:   name,
		mode:   mode,
		uid:    uid,
		gid:    gid,
		modUID: uid,
		atime:  now,
		mtime:  now,
		parent: dir,
	}
	if !mode.IsDir() {
		n.file = vfile.New(t.blockSize, &dirtyNode{node: n, sink: t.sink})
	}
	n.lookupCount = 1 // the parent's child list holds an implicit reference

	dir.children = append(dir.children, n)
	return n, nil
}

// Enumerate returns a snapshot of dir's children in creation order.
// The whole sibling list is copied under dir's domain in one critical
// section, so the returned slice is a consistent view that concurrent
// create/remove cannot tear — it is a distinct copy, not a live view
// into dir.children.
func (t *Tree) Enumerate(dir *Node) []*Node {
	dir.Lock()
	defer dir.Unlock()

	out := make([]*Node, len(dir.children))
	copy(out, dir.children)
	return out
}

// Remove splices node out of dir's sibling list, clears its parent
// pointer, and releases the child list's implicit reference. Open-handle
// references keep the node alive until they are released; if none
// remains, the node's Versioned File is destroyed here.
func (t *Tree) Remove(dir *Node, node *Node) error {
	dir.Lock()
	defer dir.Unlock()

	idx := -1
	for i, c := range dir.children {
		if c == node {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotExist
	}

	dir.children = append(dir.children[:idx], dir.children[idx+1:]...)

	node.Lock()
	node.parent = nil
	node.removed = true
	node.mu.Unlock()

	node.decRef(1) // release the child-list's implicit reference
	return nil
}

// Stat returns a metadata snapshot of node.
func (t *Tree) Stat(node *Node) Stat {
	node.Lock()
	defer node.Unlock()

	length := 0
	if node.file != nil {
		length = node.file.Length()
	}

	return Stat{
		ID:     node.id,
		Name:   node.name,
		Mode:   node.mode,
		UID:    node.uid,
		GID:    node.gid,
		ModUID: node.modUID,
		ATime:  node.atime,
		MTime:  node.mtime,
		Length: length,
	}
}

// ProposedStat carries optional field updates for WriteStat. A zero
// value field ("not-set" sentinel) leaves the corresponding attribute
// unchanged; Name == "" means no rename is requested.
type ProposedStat struct {
	Name       string
	Length     *int
	Perm       *Mode
	ModTime    *time.Time
	ModifierID uint32
}

// WriteStat applies proposed to node, all-or-nothing: on any failure no
// attribute is changed.
//
// If a rename is requested, dir must be node's current parent; the
// rename is validated and applied under dir's domain before any other
// attribute changes are applied.
func (t *Tree) WriteStat(dir *Node, node *Node, proposed ProposedStat) error {
	var renamed bool
	var oldName string

	if proposed.Name != "" {
		dir.Lock()
		for _, c := range dir.children {
			if c != node && c.name == proposed.Name {
				dir.Unlock()
				return ErrExist
			}
		}
		node.Lock()
		oldName = node.name
		node.name = proposed.Name
		node.mu.Unlock()
		dir.Unlock()
		renamed = true
	}

	if proposed.Length != nil {
		if node.file == nil {
			if renamed {
				t.rollbackName(dir, node, oldName)
			}
			return ErrPerm
		}
		if err := node.file.TruncateMetadata(*proposed.Length); err != nil {
			if renamed {
				t.rollbackName(dir, node, oldName)
			}
			return err
		}
	}

	node.Lock()
	if proposed.Perm != nil {
		node.mode = (node.mode &^ ModePerm) | (*proposed.Perm & ModePerm)
	}
	if proposed.ModTime != nil {
		node.mtime = *proposed.ModTime
	}
	if proposed.ModifierID != 0 {
		node.modUID = proposed.ModifierID
	}
	node.mu.Unlock()

	return nil
}

func (t *Tree) rollbackName(dir *Node, node *Node, oldName string) {
	dir.Lock()
	node.Lock()
	node.name = oldName
	node.mu.Unlock()
	dir.Unlock()
}

// Open increments node's lookup count for a freshly opened handle.
func (t *Tree) Open(node *Node) {
	node.incRef()
}

// Clunk releases count references previously acquired via Create/Open,
// destroying the node's Versioned File once the count reaches zero and
// the node has been removed from the tree.
func (t *Tree) Clunk(node *Node, count uint64) {
	node.decRef(count)
}
