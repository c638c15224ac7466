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

// A synchronous-snapshot in-memory file server exported over a
// 9P-style file protocol.
//
// Usage:
//
//	syncfs [flags]
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/geekmug/go-syncfs/cmd"
)

func main() {
	defer reportCrash()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// reportCrash writes a panic and its stack trace to the -l log path via
// cmd.CrashWriter before re-panicking, so a crash after the process has
// detached (and stderr is unreachable) is not silently lost.
func reportCrash() {
	r := recover()
	if r == nil {
		return
	}

	w := cmd.NewCrashWriter(cmd.CrashLogPath())
	_, _ = fmt.Fprintf(w, "panic: %v\n\n%s", r, debug.Stack())
	panic(r)
}
