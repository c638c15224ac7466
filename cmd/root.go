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

// Package cmd wires the startup flags through cobra + pflag + viper
// into a validated internal/config.Config, then hands off to Run:
// cobra owns flag parsing, a separate function owns the fork/run
// decision.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/geekmug/go-syncfs/internal/config"
)

// inBackgroundModeEnv marks the re-exec'd child as already detached.
const inBackgroundModeEnv = "SYNCFS_IN_BACKGROUND_MODE"

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "syncfs",
	Short: "A synchronous-snapshot in-memory file server.",
	Long: `syncfs exports an in-memory namespace over a 9P-style file protocol.
Writes are staged and become visible to readers only at discrete commit
ticks driven by an internal clock; stat-ing the distinguished /clock
file blocks until the next tick completes.`,
	SilenceUsage: true,
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := resolveConfig(c.Flags())
		if err != nil {
			return err
		}
		return Run(cfg)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolP("foreground", "n", false, "do not detach from the controlling terminal")
	flags.BoolP("debug", "d", false, "enable debug logging")
	flags.BoolP("mlock", "m", false, "lock process memory if available")
	flags.IntP("block-size", "b", config.DefaultBlockSize, "revision block size in bytes (default: system page size)")
	flags.Uint32P("workers", "w", config.DefaultWorkers, "number of protocol worker threads")
	flags.Uint16P("port", "p", config.DefaultPort, "TCP listen port")
	flags.IntP("tick-millis", "c", config.DefaultTickMillis, "commit tick period in milliseconds")
	flags.StringP("log-path", "l", config.DefaultLogPath, "log file path when detached")

	if err := v.BindPFlags(flags); err != nil {
		// Flag registration is static and checked at init time; a bind
		// failure here means a programming error, not a runtime one.
		panic(fmt.Sprintf("cmd: BindPFlags: %v", err))
	}
	v.SetEnvPrefix("SYNCFS")
	v.AutomaticEnv()
}

func resolveConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	cfg.Foreground = v.GetBool("foreground")
	cfg.Debug = v.GetBool("debug")
	cfg.MemLock = v.GetBool("mlock")
	cfg.Workers = v.GetUint32("workers")
	cfg.Port = uint16(v.GetUint("port"))
	cfg.LogPath = v.GetString("log-path")

	if flags.Changed("block-size") {
		cfg.BlockSize = v.GetInt("block-size")
	}
	if tickMillis := v.GetInt("tick-millis"); tickMillis > 0 {
		cfg.TickPeriod = time.Duration(tickMillis) * time.Millisecond
	} else {
		cfg.TickPeriod = 0
	}

	if os.Getenv(inBackgroundModeEnv) == "true" {
		cfg.Foreground = true // the re-exec'd child always runs in the foreground of its own process
		crashLogPath = cfg.LogPath
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Execute runs the root command; it is the single entry point main.go
// calls.
func Execute() error {
	return rootCmd.Execute()
}
