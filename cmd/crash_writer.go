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

package cmd

import "os"

// CrashWriter appends panic output to a file: once daemonized, stderr
// is unreachable, so main's recover handler writes crash text here
// instead of letting it vanish.
type CrashWriter struct {
	fileName string
}

// NewCrashWriter returns a CrashWriter appending to path. An empty path
// means no crash file was configured (foreground run, stderr is still
// live); Write is then a silent no-op.
func NewCrashWriter(path string) *CrashWriter {
	return &CrashWriter{fileName: path}
}

func (w *CrashWriter) Write(p []byte) (n int, err error) {
	if w.fileName == "" {
		return len(p), nil
	}

	f, err := os.OpenFile(w.fileName, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	n, err = f.Write(p)
	return
}

// crashLogPath is set once resolveConfig determines whether this
// process is a detached worker and, if so, which file it logs to.
var crashLogPath string

// CrashLogPath returns the log file path main should report crashes to,
// or "" if this process never configured one (still attached to a
// terminal).
func CrashLogPath() string {
	return crashLogPath
}
