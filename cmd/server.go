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

// Package cmd: server.go wires the validated Config into a running
// server — Name Tree, Commit Scheduler, Clock Barrier, and the
// internal/fileserver protocol adapter — and owns the fork/foreground
// decision and graceful shutdown. cobra owns flags, this file owns
// "daemonize or run", and an errgroup owns "run until one component
// fails or a signal arrives".
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"

	"github.com/jacobsa/daemonize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/geekmug/go-syncfs/clock"
	"github.com/geekmug/go-syncfs/internal/barrier"
	"github.com/geekmug/go-syncfs/internal/clockfile"
	"github.com/geekmug/go-syncfs/internal/config"
	"github.com/geekmug/go-syncfs/internal/dirtyset"
	"github.com/geekmug/go-syncfs/internal/fileserver"
	"github.com/geekmug/go-syncfs/internal/logger"
	"github.com/geekmug/go-syncfs/internal/metrics"
	"github.com/geekmug/go-syncfs/internal/nametree"
	"github.com/geekmug/go-syncfs/internal/revision"
	"github.com/geekmug/go-syncfs/internal/scheduler"
	"github.com/geekmug/go-syncfs/internal/workerpool"
)

// priorityWorkers is the size of the workerpool's priority lane. Clock
// barrier releases run on the commit scheduler's own goroutine, not on
// this pool, and nothing in this package schedules priority work.
const priorityWorkers = 4

// server bundles every wired-up component Run needs to start and stop
// together.
type server struct {
	cfg   config.Config
	tree  *nametree.Tree
	sched *scheduler.Scheduler
	pool  *workerpool.Pool
	fsrv  *fileserver.FileServer
}

// newServer builds the Name Tree (a single root directory holding the
// distinguished /clock file), the Commit Scheduler, the worker pool,
// and the protocol adapter.
func newServer(cfg config.Config) (*server, error) {
	uid, gid := resolveNamespaceOwner()

	dirty := dirtyset.New()
	tree := nametree.New(cfg.BlockSize, dirty, uid, gid)

	clockNode, err := tree.Create(tree.Root(), "clock", nametree.Mode(0666), uid, gid)
	if err != nil {
		return nil, fmt.Errorf("cmd: create /clock: %w", err)
	}

	q := barrier.New()
	cf := clockfile.New(clockNode, q, cfg.TickPeriod.Nanoseconds())

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer, revision.LiveCount)
	sched := scheduler.New(clock.RealClock{}, cfg.TickPeriod, dirty, q, cf, reg)

	pool, err := workerpool.NewStaticWorkerPool(priorityWorkers, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("cmd: workerpool: %w", err)
	}

	fsrv := fileserver.New(tree, clockNode, cf)

	return &server{cfg: cfg, tree: tree, sched: sched, pool: pool, fsrv: fsrv}, nil
}

// resolveNamespaceOwner resolves the "nobody" user that owns the
// root, falling back to the conventional nobody/nogroup numeric IDs
// when the identity database has no such entry — e.g. minimal
// containers.
func resolveNamespaceOwner() (uid, gid uint32) {
	const fallback = 65534

	u, err := user.Lookup("nobody")
	if err != nil {
		return fallback, fallback
	}

	uidN, uidErr := strconv.ParseUint(u.Uid, 10, 32)
	gidN, gidErr := strconv.ParseUint(u.Gid, 10, 32)
	if uidErr != nil || gidErr != nil {
		return fallback, fallback
	}
	return uint32(uidN), uint32(gidN)
}

// run starts every component and blocks until one fails, ctx is
// cancelled, or a SIGINT/SIGTERM arrives.
func (s *server) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.sched.Run(gctx)
	})

	g.Go(func() error {
		return s.serveMetrics(gctx)
	})

	g.Go(func() error {
		return s.acceptConnections(gctx)
	})

	err := g.Wait()
	s.pool.Stop()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveMetrics exposes the Prometheus registry built in newServer on
// the next port above the file-server's listen port, so operators can
// scrape tick cadence and queue depth without opening a 9P client
// connection.
func (s *server) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", int(s.cfg.Port)+1)
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		_ = srv.Close()
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("cmd: metrics listener: %w", err)
	}
}

// acceptConnections binds the -p listen port. The 9P wire codec and
// its dispatcher live outside this server; this loop owns the socket
// and hands accepted connections to the worker pool for them.
func (s *server) acceptConnections(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("cmd: listen on port %d: %w", s.cfg.Port, err)
	}

	// Cap concurrent connections at the worker count so the accept loop
	// cannot outrun the pool that services them.
	ln = netutil.LimitListener(ln, int(s.cfg.Workers))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("cmd: accept: %w", err)
		}

		s.pool.Schedule(func() {
			logger.Debugf("cmd: accepted connection from %s; wire protocol decoding is out of scope", conn.RemoteAddr())
			_ = conn.Close()
		})
	}
}

// Run is the single entry point main() calls after flags are resolved.
// It either re-execs itself detached (the default) or runs the server
// inline when -n was given or this call is the re-exec'd child.
func Run(cfg config.Config) error {
	logger.SetDebug(cfg.Debug)

	background := os.Getenv(inBackgroundModeEnv) == "true"
	if !cfg.Foreground && !background {
		return runDetached(cfg)
	}
	return runForeground(cfg, background)
}

// runDetached re-execs the current binary with --foreground via
// daemonize.Run, which waits for the child to report its startup
// outcome before the parent returns.
func runDetached(cfg config.Config) error {
	path, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cmd: os.Executable: %w", err)
	}

	args := append([]string{"--foreground"}, os.Args[1:]...)
	env := []string{
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
		fmt.Sprintf("%s=true", inBackgroundModeEnv),
	}

	if err := daemonize.Run(path, args, env, os.Stdout, nil); err != nil {
		return fmt.Errorf("cmd: daemonize.Run: %w", err)
	}
	fmt.Fprintln(os.Stdout, "syncfs started in the background")
	return nil
}

// runForeground runs the server inline. When background is true it is
// the re-exec'd child: it logs to the rotating file at -l instead of
// stdout and reports its startup outcome back to the waiting parent
// via daemonize.SignalOutcome.
func runForeground(cfg config.Config, background bool) error {
	if background {
		if err := logger.InitLogFile(cfg.LogPath); err != nil {
			return fmt.Errorf("cmd: logger.InitLogFile: %w", err)
		}
		defer logger.Close()
	}

	signalOutcome := func(outcome error) {
		if !background {
			return
		}
		if err := daemonize.SignalOutcome(outcome); err != nil {
			logger.Errorf("cmd: failed to signal outcome to parent: %v", err)
		}
	}

	if cfg.MemLock {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			logger.Warnf("cmd: mlockall failed, continuing without locked memory: %v", err)
		}
	}

	srv, err := newServer(cfg)
	if err != nil {
		signalOutcome(err)
		return err
	}

	logger.Infof("syncfs listening on port %d, tick period %s, %d workers", cfg.Port, cfg.TickPeriod, cfg.Workers)
	signalOutcome(nil)

	return srv.run(context.Background())
}
