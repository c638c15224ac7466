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

package fileserver

import (
	"time"

	"github.com/geekmug/go-syncfs/internal/nametree"
)

// Qid is the wire-level identity of a node: a (path, version) pair, in
// the 9P sense. Version is derived from the node's modification time,
// which the commit scheduler stamps whenever new content lands, so
// clients can detect that a file changed underneath a cached handle.
type Qid struct {
	Path    uint64
	Version uint32
	IsDir   bool
}

func qidFromStat(st nametree.Stat) Qid {
	return Qid{
		Path:    uint64(st.ID),
		Version: uint32(st.MTime.Unix()),
		IsDir:   st.Mode.IsDir(),
	}
}

// Attrs is the wire-facing metadata snapshot, translated from
// nametree.Stat.
type Attrs struct {
	Qid    Qid
	Name   string
	Mode   uint32
	IsDir  bool
	UID    uint32
	GID    uint32
	ModUID uint32
	ATime  time.Time
	MTime  time.Time
	Length int
}

func attrsFromStat(st nametree.Stat) Attrs {
	return Attrs{
		Qid:    qidFromStat(st),
		Name:   st.Name,
		Mode:   uint32(st.Mode),
		IsDir:  st.Mode.IsDir(),
		UID:    st.UID,
		GID:    st.GID,
		ModUID: st.ModUID,
		ATime:  st.ATime,
		MTime:  st.MTime,
		Length: st.Length,
	}
}

// DirEntry is one entry returned by Enumerate.
type DirEntry struct {
	Name  string
	Qid   Qid
	IsDir bool
}
