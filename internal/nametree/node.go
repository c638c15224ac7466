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
	"fmt"
	"sync"
	"time"

	"github.com/geekmug/go-syncfs/internal/logger"
	"github.com/geekmug/go-syncfs/internal/vfile"
)

// ID is a node's unique, monotonically-assigned identifier.
type ID uint64

// Node is a Name Tree node: a file or a directory. Regular files carry
// a Versioned File; directories carry an ordered child list.
//
// GUARDED_BY(mu): name, mode, owner/group/modifier, times, children,
// parent.
type Node struct {
	id ID

	mu sync.Mutex

	name     string
	mode     Mode
	uid, gid uint32
	modUID   uint32 // last modifier
	atime    time.Time
	mtime    time.Time

	parent   *Node
	children []*Node // valid only when mode.IsDir()

	file *vfile.VersionedFile // valid only when !mode.IsDir()

	// lookupCount mirrors fs/inode's lookupCount helper: the protocol
	// layer holds one reference per open handle, the parent directory
	// holds one implicitly via the children slice. destroyed fires once
	// both relinquish it.
	lookupCount uint64
	removed     bool
}

// Mode carries the directory flag and permission bits.
type Mode uint32

const (
	// ModeDir marks a directory node.
	ModeDir Mode = 1 << 31
	// ModePerm masks the permission bits (matches os.FileMode's lower 9 bits).
	ModePerm Mode = 0777
)

// IsDir reports whether m has the directory bit set.
func (m Mode) IsDir() bool { return m&ModeDir != 0 }

// ID returns the node's unique identifier.
func (n *Node) ID() ID { return n.id }

// Lock acquires the node's own domain, guarding its metadata (name,
// mode, owner/group/modifier, times) per the lock-ordering discipline:
// parent domain, then target node, then file domains.
func (n *Node) Lock()   { n.mu.Lock() }
func (n *Node) Unlock() { n.mu.Unlock() }

// File returns the node's Versioned File. Panics if called on a
// directory.
func (n *Node) File() *vfile.VersionedFile {
	if n.mode.IsDir() {
		panic("nametree: File called on a directory node")
	}
	return n.file
}

// Stat is a metadata snapshot returned by Tree.Stat.
type Stat struct {
	ID       ID
	Name     string
	Mode     Mode
	UID, GID uint32
	ModUID   uint32
	ATime    time.Time
	MTime    time.Time
	Length   int
}

func (n *Node) incRef() {
	n.mu.Lock()
	n.lookupCount++
	n.mu.Unlock()
}

// decRef mirrors fs/inode's lookupCount.Dec: it drops count references
// and, once the count reaches zero on a removed node, destroys the
// node's Versioned File, logs the destruction at debug level, and
// reports true.
func (n *Node) decRef(count uint64) (destroyed bool) {
	n.mu.Lock()
	if count > n.lookupCount {
		n.mu.Unlock()
		panic(fmt.Sprintf("nametree: decRef(%d) exceeds lookup count %d", count, n.lookupCount))
	}
	n.lookupCount -= count
	destroyed = n.lookupCount == 0 && n.removed
	n.mu.Unlock()

	if destroyed && n.file != nil {
		n.file.Destroy()
	}
	if destroyed {
		logger.Debugf("nametree: node %d destroyed", n.id)
	}
	return destroyed
}
