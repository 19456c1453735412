// Package replicator sequences the per-dataset replication procedure
// spec.md §4.8/§4.9/§5 describe: safety probes, inventory, planning,
// pipeline execution, and pruning, with the read-only toggle and the
// sync snapshot's lifecycle scoped so every exit path leaves the target
// in a consistent state.
//
// Grounded on job/runner.go's Runner struct (embedded eventemitter,
// *slog.Logger, context-scoped operation) restructured from the
// teacher's always-on background-ticker daemon into the single-shot,
// strictly-sequential-per-dataset shape spec.md §5 requires.
package replicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	eventemitter "github.com/vansante/go-event-emitter"

	"github.com/hrefhref/sanoid/capability"
	"github.com/hrefhref/sanoid/endpoint"
	"github.com/hrefhref/sanoid/executor"
	"github.com/hrefhref/sanoid/pipeline"
	"github.com/hrefhref/sanoid/planner"
	"github.com/hrefhref/sanoid/syncsnap"
	"github.com/hrefhref/sanoid/zfsctl"
)

// Runner drives dataset syncs against a single Executor.
type Runner struct {
	*eventemitter.Emitter

	Exec     executor.Executor
	ZFS      *zfsctl.Client
	Config   Config
	Logger   *slog.Logger
	Hostname string

	// Now returns the current time; overridable in tests so sync
	// snapshot names are deterministic.
	Now func() time.Time
}

// NewRunner returns a Runner backed by exec_, logging through logger.
func NewRunner(exec_ executor.Executor, cfg Config, logger *slog.Logger, hostname string) *Runner {
	cfg.ApplyDefaults()
	return &Runner{
		Emitter:  eventemitter.NewEmitter(false),
		Exec:     exec_,
		ZFS:      zfsctl.New(exec_),
		Config:   cfg,
		Logger:   logger,
		Hostname: hostname,
		Now:      time.Now,
	}
}

func (r *Runner) runPipeline(ctx context.Context, line string, out io.Writer) error {
	return r.Exec.RunStreamed(ctx, executor.Target{}, false, []string{"sh", "-c", line}, nil, out)
}

// SyncDataset runs the single-dataset procedure spec.md §5 orders:
// probe-busy, detect-target, source-enumeration, optional
// target-enumeration, mint sync snapshot, optional readonly save/set,
// probe-busy, send steps (each re-probed), optional readonly restore,
// source prune, target prune. out receives the pipeline's stdout; it may
// be nil. The pipeline's stderr, pv's progress output included, is not
// written to out: it is captured and only reported in the error on failure.
func (r *Runner) SyncDataset(ctx context.Context, source, target endpoint.Endpoint, caps capability.Set, out io.Writer) error {
	srcT := source.Target()
	tgtT := target.Target()

	r.EmitEvent(SyncStartEvent, source.Dataset, target.Dataset)

	if err := r.checkNotBusy(ctx, tgtT, target.Dataset); err != nil {
		return err
	}

	exists, err := r.ZFS.DatasetExists(ctx, tgtT, target.Dataset)
	if err != nil {
		return fmt.Errorf("replicator: error checking target existence: %w", err)
	}

	srcSnaps, err := r.ZFS.Snapshots(ctx, srcT, source.Dataset)
	if err != nil {
		return fmt.Errorf("replicator: error enumerating source snapshots: %w", err)
	}

	var tgtSnaps []zfsctl.Snapshot
	if exists {
		tgtSnaps, err = r.ZFS.Snapshots(ctx, tgtT, target.Dataset)
		if err != nil {
			return fmt.Errorf("replicator: error enumerating target snapshots: %w", err)
		}
	}
	inv := planner.BuildInventory(srcSnaps, tgtSnaps)

	if r.Config.DumpSnapshots {
		r.Logger.Info("replicator: snapshot inventory", "source", inv.Source, "target", inv.Target)
	}

	newSync, err := syncsnap.Mint(ctx, r.ZFS, srcT, source.Dataset, r.Hostname, r.Now())
	if err != nil {
		return fmt.Errorf("replicator: error minting sync snapshot: %w", err)
	}
	r.EmitEvent(MintedSyncSnapshotEvent, newSync)

	plan, err := planner.Decide(inv, exists, newSync)
	if err != nil {
		return fmt.Errorf("replicator: error planning sync of %s: %w", target.Dataset, err)
	}

	restore, err := r.acquireReadOnly(ctx, tgtT, target.Dataset, exists)
	if err != nil {
		return err
	}
	// release restores readonly exactly once: explicitly before pruning on
	// the success path (spec §5 orders restore before prune), or via defer
	// on any early return, so every exit path still releases it.
	restored := false
	release := func() {
		if restored {
			return
		}
		restored = true
		restore()
	}
	defer release()

	for _, step := range plan.Steps() {
		if err := r.checkNotBusy(ctx, tgtT, target.Dataset); err != nil {
			return err
		}

		var estimate int64
		if caps.Pv {
			estimate = r.ZFS.EstimateSend(ctx, srcT, zfsctl.SendSpec{Dataset: source.Dataset, From: step.From, To: step.To})
		}

		line := pipeline.Assemble(pipeline.Params{
			SourceDataset:  source.Dataset,
			TargetDataset:  target.Dataset,
			Source:         srcT,
			Target:         tgtT,
			Step:           step,
			Capabilities:   caps,
			Compressor:     r.Config.Compressor,
			SourceBwlimit:  r.Config.SourceBwlimit,
			TargetBwlimit:  r.Config.TargetBwlimit,
			EstimatedBytes: estimate,
		})

		r.EmitEvent(SendStartEvent, step.From, step.To)
		if err := r.runPipeline(ctx, line, out); err != nil {
			r.Logger.Error("replicator: pipeline failed", "dataset", target.Dataset, "error", err)
			return fmt.Errorf("%w: %s: %v", ErrPipelineFailure, target.Dataset, err)
		}
		r.EmitEvent(SendCompleteEvent, step.To)
	}

	release()
	r.prune(ctx, source, target, newSync)

	r.EmitEvent(SyncCompleteEvent, source.Dataset, target.Dataset)
	return nil
}

func (r *Runner) checkNotBusy(ctx context.Context, target executor.Target, dataset string) error {
	busy, err := r.ZFS.ReceiveInProgress(ctx, target, dataset)
	if err != nil {
		return fmt.Errorf("replicator: error probing receive status: %w", err)
	}
	if busy {
		r.EmitEvent(TargetBusyEvent, dataset)
		return fmt.Errorf("%w: %s", ErrTargetBusy, dataset)
	}
	return nil
}

// acquireReadOnly saves and forces the target's readonly property on
// when the target already exists, returning a release func that restores
// the saved value. It is always safe to call the returned func, even
// when nothing was changed. Guaranteed release on every exit path is the
// caller's responsibility (defer immediately after a nil error return).
func (r *Runner) acquireReadOnly(ctx context.Context, target executor.Target, dataset string, exists bool) (release func(), err error) {
	noop := func() {}
	if !exists {
		return noop, nil
	}

	saved, err := r.ZFS.GetProp(ctx, target, dataset, zfsctl.PropertyReadOnly)
	if err != nil {
		return noop, fmt.Errorf("replicator: error reading readonly property: %w", err)
	}
	if err := r.ZFS.SetProp(ctx, target, dataset, zfsctl.PropertyReadOnly, zfsctl.ValueOn); err != nil {
		return noop, fmt.Errorf("replicator: error setting readonly property: %w", err)
	}
	r.EmitEvent(ReadOnlySetEvent, dataset)

	return func() {
		if err := r.ZFS.SetProp(ctx, target, dataset, zfsctl.PropertyReadOnly, saved); err != nil {
			r.Logger.Error("replicator: error restoring readonly property", "dataset", dataset, "error", err)
			return
		}
		r.EmitEvent(ReadOnlyRestoredEvent, dataset)
	}, nil
}

// prune removes prior sync snapshots on both sides after a successful
// run. Failures are logged, not returned: spec.md §7 PruneFailure does
// not fail the run.
func (r *Runner) prune(ctx context.Context, source, target endpoint.Endpoint, newSync string) {
	r.EmitEvent(PruneStartEvent, source.Dataset, target.Dataset)

	srcSnaps, err := r.ZFS.Snapshots(ctx, source.Target(), source.Dataset)
	if err != nil {
		r.Logger.Error("replicator: error listing source snapshots for prune", "dataset", source.Dataset, "error", err)
	} else if err := syncsnap.Prune(ctx, r.ZFS, source.Target(), source.Dataset, r.Hostname, newSync, srcSnaps); err != nil {
		r.Logger.Error("replicator: source prune failed", "dataset", source.Dataset, "error", err)
	}

	tgtSnaps, err := r.ZFS.Snapshots(ctx, target.Target(), target.Dataset)
	if err != nil {
		r.Logger.Error("replicator: error listing target snapshots for prune", "dataset", target.Dataset, "error", err)
	} else if err := syncsnap.Prune(ctx, r.ZFS, target.Target(), target.Dataset, r.Hostname, newSync, tgtSnaps); err != nil {
		r.Logger.Error("replicator: target prune failed", "dataset", target.Dataset, "error", err)
	}

	r.EmitEvent(PruneCompleteEvent, source.Dataset, target.Dataset)
}
