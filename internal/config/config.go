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

// Package config defines the validated, immutable Config assembled
// from the startup flags: cobra/pflag/viper populate a plain struct,
// which is then validated once at startup rather than re-checked on
// every read.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the fully-resolved, validated startup configuration.
type Config struct {
	// Foreground mirrors -n: run without detaching.
	Foreground bool
	// Debug mirrors -d: raise the logger to debug level.
	Debug bool
	// MemLock mirrors -m: best-effort mlockall.
	MemLock bool
	// BlockSize mirrors -b: revision buffer rounding granularity.
	BlockSize int
	// Workers mirrors -w: protocol worker thread count.
	Workers uint32
	// Port mirrors -p: TCP listen port (threaded through, transport is
	// out of scope).
	Port uint16
	// TickPeriod mirrors -c, converted from milliseconds to a Duration.
	TickPeriod time.Duration
	// LogPath mirrors -l: log file path used when detached.
	LogPath string
}

// Default values for each startup flag.
const (
	DefaultBlockSize  = 0 // resolved to os.Getpagesize() by Default()
	DefaultWorkers    = 128
	DefaultPort       = 10000
	DefaultTickMillis = 100
	DefaultLogPath    = "/tmp/syncfs.log"
)

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		BlockSize:  os.Getpagesize(),
		Workers:    DefaultWorkers,
		Port:       DefaultPort,
		TickPeriod: DefaultTickMillis * time.Millisecond,
		LogPath:    DefaultLogPath,
	}
}

// Validate rejects configurations that cannot be started: a zero
// worker count leaves no goroutine to service protocol requests, a
// non-positive block size or tick period has no sensible rounding or
// cadence.
func (c Config) Validate() error {
	if c.Workers == 0 {
		return fmt.Errorf("config: -w must be > 0")
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("config: -b must be > 0")
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("config: -c must be > 0")
	}
	if c.LogPath == "" && !c.Foreground {
		return fmt.Errorf("config: -l must be set when running detached")
	}
	return nil
}
