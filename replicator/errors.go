package replicator

import "errors"

var (
	// ErrTargetBusy is returned when the target host reports a receive
	// already in progress, before any side effect (spec.md §7).
	ErrTargetBusy = errors.New("replicator: target is busy receiving")
	// ErrPipelineFailure wraps a non-zero exit from the assembled send/
	// receive pipeline. Prune is skipped for the affected dataset when
	// this occurs, so any snapshot needed to resume is not destroyed.
	ErrPipelineFailure = errors.New("replicator: pipeline failed")
)
