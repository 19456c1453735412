package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hrefhref/sanoid/capability"
	"github.com/hrefhref/sanoid/endpoint"
	"github.com/hrefhref/sanoid/executor"
	"github.com/hrefhref/sanoid/replicator"
)

type runParams struct {
	source, target string
	config         replicator.Config
	logger         *slog.Logger
}

// run resolves both endpoints, opens their SSH control sockets, probes
// capabilities once, and dispatches to a single-dataset or recursive
// sync, closing every control socket on the way out (spec.md §4.9). A
// signal to the process cancels ctx, which terminates the in-flight
// pipeline's process group (spec.md §5 Cancellation).
func run(ctx context.Context, p runParams) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec_ := executor.New()

	src, err := endpoint.Parse(p.source)
	if err != nil {
		return fmt.Errorf("sanoid-sync: bad source: %w", err)
	}
	tgt, err := endpoint.Parse(p.target)
	if err != nil {
		return fmt.Errorf("sanoid-sync: bad target: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("sanoid-sync: error reading hostname: %w", err)
	}

	now := time.Now().Unix()

	src, err = endpoint.Open(ctx, exec_, p.config.Tool, src, now)
	if err != nil {
		return fmt.Errorf("sanoid-sync: error opening source endpoint: %w", err)
	}
	defer closeEndpoint(exec_, src, p.logger)

	tgt, err = endpoint.Open(ctx, exec_, p.config.Tool, tgt, now)
	if err != nil {
		return fmt.Errorf("sanoid-sync: error opening target endpoint: %w", err)
	}
	defer closeEndpoint(exec_, tgt, p.logger)

	caps := capability.Probe(ctx, exec_, p.config.Compressor, src.Target(), tgt.Target(), p.config.NoCommandChecks)

	runner := replicator.NewRunner(exec_, p.config, p.logger, hostname)
	attachLogListeners(runner, p.logger)

	if p.config.Recursive {
		return runner.SyncRecursive(ctx, src, tgt, caps, progressWriter(p.config.Debug))
	}
	return runner.SyncDataset(ctx, src, tgt, caps, progressWriter(p.config.Debug))
}

// closeEndpoint always issues `ssh -O exit` on its own short-lived
// context rather than the run's ctx, which signal.NotifyContext has
// already cancelled by the time this deferred call runs on the
// Ctrl-C/SIGTERM path. Reusing it would make every close a no-op and
// leak the control socket (spec §4.9, §5).
func closeEndpoint(exec_ executor.Executor, e endpoint.Endpoint, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := endpoint.Close(ctx, exec_, e); err != nil {
		logger.Error("sanoid-sync: error closing control socket", "endpoint", e.String(), "error", err)
	}
}

// progressWriter returns where the pipeline's stdout is written; nil when
// not debugging, so a quiet run stays quiet. pv's progress output goes to
// the pipeline's stderr, which is captured rather than written here.
func progressWriter(debug bool) io.Writer {
	if debug {
		return os.Stderr
	}
	return nil
}

func attachLogListeners(r *replicator.Runner, logger *slog.Logger) {
	r.AddListener(replicator.TargetBusyEvent, func(args ...any) {
		logger.Warn("sanoid-sync: target busy", "dataset", args[0])
	})
	r.AddListener(replicator.SyncCompleteEvent, func(args ...any) {
		logger.Info("sanoid-sync: sync complete", "source", args[0], "target", args[1])
	})
}
