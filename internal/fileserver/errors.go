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
	"errors"
	"syscall"

	"github.com/geekmug/go-syncfs/internal/nametree"
	"github.com/geekmug/go-syncfs/internal/revision"
)

// Kind is the symbolic error kind the core reports to the protocol
// layer, which pairs it with a numeric posix code.
type Kind int

const (
	// KindNone indicates success; Error is never constructed with it.
	KindNone Kind = iota
	KindNoSpace
	KindExist
	KindPerm
	KindNotExist
	// KindIO covers errors the core does not itself define a symbolic
	// kind for (e.g. an unexpected wrapped error); it exists purely as
	// a backstop behind NoSpace/Exist/Perm/NotExist.
	KindIO
)

// Error pairs a symbolic Kind with the POSIX errno the wire protocol
// reports to the client.
type Error struct {
	Kind  Kind
	Errno syscall.Errno
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Errno.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, errno syscall.Errno, wrapped error) *Error {
	return &Error{Kind: kind, Errno: errno, Err: wrapped}
}

// classify maps a core-level sentinel error to the (Kind, errno) pair
// the wire protocol expects.
func classify(err error) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, revision.ErrNoSpace):
		return newError(KindNoSpace, syscall.ENOSPC, err)
	case errors.Is(err, nametree.ErrExist):
		return newError(KindExist, syscall.EEXIST, err)
	case errors.Is(err, nametree.ErrPerm):
		return newError(KindPerm, syscall.EPERM, err)
	case errors.Is(err, nametree.ErrNotExist):
		return newError(KindNotExist, syscall.ENOENT, err)
	default:
		return newError(KindIO, syscall.EIO, err)
	}
}
