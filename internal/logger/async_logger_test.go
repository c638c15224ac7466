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

package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupTest creates a temporary directory and returns its path and a cleanup function.
func setupTest(t *testing.T) (string, func()) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "async-logger-test-*")
	require.NoError(t, err)

	cleanup := func() {
		os.RemoveAll(tempDir)
	}

	return tempDir, cleanup
}

// captureStderr captures everything written to os.Stderr during the execution of a function.
func captureStderr(f func()) string {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		os.Stderr = oldStderr
	}()

	f()
	w.Close()

	var stderrBuf bytes.Buffer
	io.Copy(&stderrBuf, r)
	r.Close()
	return stderrBuf.String()
}

func TestAsyncLogger_WriteAndClose(t *testing.T) {
	// Arrange
	tempDir, cleanup := setupTest(t)
	defer cleanup()
	logPath := filepath.Join(tempDir, "test.log")
	lj := &lumberjack.Logger{Filename: logPath}
	asyncLogger := NewAsyncLogger(lj, 10)

	// Act
	fmt.Fprintln(asyncLogger, "message 1")
	fmt.Fprintln(asyncLogger, "message 2")
	fmt.Fprintln(asyncLogger, "message 3")
	err := asyncLogger.Close()

	// Assert
	require.NoError(t, err)
	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	expected := "message 1\nmessage 2\nmessage 3\n"
	assert.Equal(t, expected, string(content))
}

// blockingWriter blocks every Write until released, so a test can hold
// the drain goroutine mid-write and deterministically fill the buffer.
type blockingWriter struct {
	gate   chan struct{}
	mu     sync.Mutex
	writes int
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.gate
	w.mu.Lock()
	w.writes++
	w.mu.Unlock()
	return len(p), nil
}

func (w *blockingWriter) Close() error { return nil }

func TestAsyncLogger_DropsWhenBufferFull(t *testing.T) {
	// Arrange: a writer that never completes until released, and a
	// buffer of 2. The drain goroutine takes one message and blocks in
	// Write; two more fill the channel; everything after that drops.
	w := &blockingWriter{gate: make(chan struct{})}
	asyncLogger := NewAsyncLogger(w, 2)

	var captured string
	act := func() {
		for i := 0; i < 10; i++ {
			fmt.Fprintf(asyncLogger, "message %d\n", i)
		}
	}
	captured = captureStderr(act)

	// Assert: at least one message was dropped and reported.
	assert.Contains(t, captured, "dropping message")

	close(w.gate)
	require.NoError(t, asyncLogger.Close())
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Less(t, w.writes, 10, "dropped messages must not reach the writer")
	assert.Greater(t, w.writes, 0, "buffered messages are still drained on Close")
}
