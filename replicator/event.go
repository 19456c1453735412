package replicator

import eventemitter "github.com/vansante/go-event-emitter"

// Event types emitted during a dataset sync, grounded on job/event.go's
// eventemitter.EventType constant block.
const (
	SyncStartEvent          eventemitter.EventType = "sync-start"
	TargetBusyEvent         eventemitter.EventType = "target-busy"
	MintedSyncSnapshotEvent eventemitter.EventType = "minted-sync-snapshot"
	ReadOnlySetEvent        eventemitter.EventType = "readonly-set"
	SendStartEvent          eventemitter.EventType = "send-start"
	SendCompleteEvent       eventemitter.EventType = "send-complete"
	ReadOnlyRestoredEvent   eventemitter.EventType = "readonly-restored"
	PruneStartEvent         eventemitter.EventType = "prune-start"
	PruneCompleteEvent      eventemitter.EventType = "prune-complete"
	SyncCompleteEvent       eventemitter.EventType = "sync-complete"
)
