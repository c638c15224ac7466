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

// Package logger provides the structured logging used throughout syncfs:
// a leveled slog.Logger writing JSON to stdout in the foreground or to a
// rotating file when daemonized, toggled between INFO and DEBUG by the -d
// startup flag.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// severity mirrors the five levels the reference server logs at. TRACE and
// DEBUG only appear when -d is given.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

var (
	programLevel  = new(slog.LevelVar)
	defaultLogger = slog.New(newHandler(os.Stdout, programLevel))
	closer        io.Closer
)

func newHandler(w io.Writer, level *slog.LevelVar) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				a.Key = "severity"
				a.Value = slog.StringValue(levelName(level))
			}
			return a
		},
	})
}

func levelName(l slog.Level) string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return l.String()
}

// SetDebug raises or lowers the global log level, mirroring the server's -d
// flag.
func SetDebug(enabled bool) {
	if enabled {
		programLevel.Set(LevelDebug)
	} else {
		programLevel.Set(LevelInfo)
	}
}

// InitLogFile redirects logging to a lumberjack-rotated file at path,
// wrapped in an AsyncLogger so that slow disks never block request
// handling. Call Close on shutdown to flush and release the file.
func InitLogFile(path string) error {
	if path == "" {
		return nil
	}

	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	async := NewAsyncLogger(lj, 1024)
	defaultLogger = slog.New(newHandler(async, programLevel))
	closer = async
	return nil
}

// Close flushes and releases any file opened by InitLogFile.
func Close() error {
	if closer == nil {
		return nil
	}
	return closer.Close()
}

func log(ctx context.Context, level slog.Level, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	defaultLogger.Log(ctx, level, msg)
}

func Tracef(format string, args ...any) { log(context.Background(), LevelTrace, format, args...) }
func Debugf(format string, args ...any) { log(context.Background(), LevelDebug, format, args...) }
func Infof(format string, args ...any)  { log(context.Background(), LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { log(context.Background(), LevelWarn, format, args...) }
func Errorf(format string, args ...any) { log(context.Background(), LevelError, format, args...) }

func Trace(msg string) { log(context.Background(), LevelTrace, msg) }
func Debug(msg string) { log(context.Background(), LevelDebug, msg) }
func Info(msg string)  { log(context.Background(), LevelInfo, msg) }
func Warn(msg string)  { log(context.Background(), LevelWarn, msg) }
func Error(msg string) { log(context.Background(), LevelError, msg) }
