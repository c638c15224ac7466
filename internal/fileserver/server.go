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

// Package fileserver is the protocol-facing adapter: the boundary an
// external 9P wire dispatcher calls into, exposing
// attach/walk/open/create/read/write/clunk/remove/stat/write-stat as
// typed methods returning typed replies or a (Kind, errno) Error.
// Every operation looks the fid's node up under the server's own lock,
// releases it, then operates under the node's own domain.
package fileserver

import (
	"sync"

	"github.com/google/uuid"

	"github.com/geekmug/go-syncfs/internal/clockfile"
	"github.com/geekmug/go-syncfs/internal/logger"
	"github.com/geekmug/go-syncfs/internal/nametree"
)

// Fid is a wire-level handle identifier, in the 9P sense.
type Fid uint64

// FileServer dispatches protocol operations onto a Name Tree.
type FileServer struct {
	tree      *nametree.Tree
	clockNode *nametree.Node
	clockFile *clockfile.ClockFile

	mu      sync.Mutex
	fids    map[Fid]*nametree.Node
	nextFid Fid
}

// New returns a FileServer over tree. If clockFile is non-nil, stat
// calls against clockNode block on the clock barrier instead of
// returning immediately.
func New(tree *nametree.Tree, clockNode *nametree.Node, cf *clockfile.ClockFile) *FileServer {
	return &FileServer{
		tree:      tree,
		clockNode: clockNode,
		clockFile: cf,
		fids:      make(map[Fid]*nametree.Node),
		nextFid:   1,
	}
}

func (s *FileServer) register(n *nametree.Node) Fid {
	s.mu.Lock()
	defer s.mu.Unlock()
	fid := s.nextFid
	s.nextFid++
	s.fids[fid] = n
	return fid
}

func (s *FileServer) lookup(fid Fid) (*nametree.Node, *Error) {
	s.mu.Lock()
	n, ok := s.fids[fid]
	s.mu.Unlock()
	if !ok {
		return nil, classify(nametree.ErrNotExist)
	}
	return n, nil
}

// Attach binds a fresh fid to the tree root and tags the session with
// a uuid for log correlation only — node identifiers themselves stay
// monotonic (see internal/nametree).
func (s *FileServer) Attach(uid, gid uint32) (sessionID string, fid Fid, attrs Attrs) {
	sessionID = uuid.NewString()
	root := s.tree.Root()
	s.tree.Open(root)
	fid = s.register(root)
	attrs = attrsFromStat(s.tree.Stat(root))
	logger.Debugf("fileserver: attach session=%s uid=%d gid=%d root fid=%d", sessionID, uid, gid, fid)
	return
}

// Walk resolves names, one path component at a time, starting from
// fid, and returns a fresh fid bound to the final component.
func (s *FileServer) Walk(fid Fid, names []string) (Fid, []Qid, *Error) {
	n, err := s.lookup(fid)
	if err != nil {
		return 0, nil, err
	}

	qids := make([]Qid, 0, len(names))
	cur := n
	for _, name := range names {
		children := s.tree.Enumerate(cur)
		var next *nametree.Node
		for _, c := range children {
			st := s.tree.Stat(c)
			if st.Name == name {
				next = c
				break
			}
		}
		if next == nil {
			return 0, nil, classify(nametree.ErrNotExist)
		}
		cur = next
		qids = append(qids, qidFromStat(s.tree.Stat(cur)))
	}

	s.tree.Open(cur)
	newFid := s.register(cur)
	return newFid, qids, nil
}

// Open prepares fid's node for I/O and returns its current attributes.
// The lookup-count reference was already taken when the fid was bound
// by Attach, Walk, or Create; Open itself adds none.
func (s *FileServer) Open(fid Fid) (Attrs, *Error) {
	n, err := s.lookup(fid)
	if err != nil {
		return Attrs{}, err
	}
	return attrsFromStat(s.tree.Stat(n)), nil
}

// Create adds a new child of dirFid named name and returns a fid bound
// to it.
func (s *FileServer) Create(dirFid Fid, name string, mode uint32, uid, gid uint32) (Fid, Attrs, *Error) {
	dir, lerr := s.lookup(dirFid)
	if lerr != nil {
		return 0, Attrs{}, lerr
	}

	n, err := s.tree.Create(dir, name, nametree.Mode(mode), uid, gid)
	if err != nil {
		return 0, Attrs{}, classify(err)
	}

	s.tree.Open(n)
	newFid := s.register(n)
	return newFid, attrsFromStat(s.tree.Stat(n)), nil
}

// Enumerate lists fid's directory entries in creation order. This is
// what a 9P dispatcher marshals when a client reads an open directory.
func (s *FileServer) Enumerate(fid Fid) ([]DirEntry, *Error) {
	n, err := s.lookup(fid)
	if err != nil {
		return nil, err
	}
	if !s.tree.Stat(n).Mode.IsDir() {
		return nil, classify(nametree.ErrPerm)
	}

	children := s.tree.Enumerate(n)
	entries := make([]DirEntry, 0, len(children))
	for _, c := range children {
		st := s.tree.Stat(c)
		entries = append(entries, DirEntry{
			Name:  st.Name,
			Qid:   qidFromStat(st),
			IsDir: st.Mode.IsDir(),
		})
	}
	return entries, nil
}

// Read copies up to count bytes starting at offset from fid's node.
func (s *FileServer) Read(fid Fid, offset, count int) ([]byte, *Error) {
	n, err := s.lookup(fid)
	if err != nil {
		return nil, err
	}
	if s.tree.Stat(n).Mode.IsDir() {
		return nil, classify(nametree.ErrPerm)
	}
	buf := make([]byte, count)
	read := n.File().Read(offset, buf)
	return buf[:read], nil
}

// Write installs src as fid's node's next pending revision. The wire
// protocol carries an offset, but a write always replaces the file's
// entire next revision, so the offset is accepted and forced to zero.
func (s *FileServer) Write(fid Fid, offset int, src []byte) (int, *Error) {
	n, lerr := s.lookup(fid)
	if lerr != nil {
		return 0, lerr
	}
	if s.tree.Stat(n).Mode.IsDir() {
		return 0, classify(nametree.ErrPerm)
	}
	written, err := n.File().Write(src)
	if err != nil {
		return 0, classify(err)
	}
	return written, nil
}

// Stat returns fid's attributes. A stat on the clock file suspends the
// caller until the next commit tick completes.
func (s *FileServer) Stat(fid Fid) (Attrs, *Error) {
	n, err := s.lookup(fid)
	if err != nil {
		return Attrs{}, err
	}
	if s.clockFile != nil && n == s.clockNode {
		return attrsFromStat(s.clockFile.Stat(s.tree)), nil
	}
	return attrsFromStat(s.tree.Stat(n)), nil
}

// WriteStatRequest carries the same optional fields as
// nametree.ProposedStat, translated at the wire boundary.
type WriteStatRequest = nametree.ProposedStat

// WriteStat applies proposed to fid's node, all-or-nothing.
func (s *FileServer) WriteStat(parentFid, fid Fid, proposed WriteStatRequest) *Error {
	dir, derr := s.lookup(parentFid)
	if derr != nil {
		return derr
	}
	n, lerr := s.lookup(fid)
	if lerr != nil {
		return lerr
	}
	if err := s.tree.WriteStat(dir, n, proposed); err != nil {
		return classify(err)
	}
	return nil
}

// Remove unlinks fid's node from its parent and clunks fid.
func (s *FileServer) Remove(parentFid, fid Fid) *Error {
	dir, derr := s.lookup(parentFid)
	if derr != nil {
		return derr
	}
	n, lerr := s.lookup(fid)
	if lerr != nil {
		return lerr
	}
	if err := s.tree.Remove(dir, n); err != nil {
		return classify(err)
	}
	return s.Clunk(fid)
}

// Clunk releases fid and the lookup-count reference it held.
func (s *FileServer) Clunk(fid Fid) *Error {
	s.mu.Lock()
	n, ok := s.fids[fid]
	if ok {
		delete(s.fids, fid)
	}
	s.mu.Unlock()

	if !ok {
		return classify(nametree.ErrNotExist)
	}
	s.tree.Clunk(n, 1)
	return nil
}
