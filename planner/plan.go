package planner

import "errors"

// ErrNoCommonSnapshot is returned by Decide when the target dataset
// already exists but shares no matching snapshot with the source,
// per spec.md §4.5/§7: the run fails rather than guessing a restart.
var ErrNoCommonSnapshot = errors.New("planner: no common snapshot between source and target")

// Kind identifies which of the three replication plans spec.md §4.5
// describes was chosen for a dataset.
type Kind int

const (
	// InitialOnly sends a single full snapshot (the newly minted sync
	// snapshot) because the source had no prior snapshots and the
	// target does not exist.
	InitialOnly Kind = iota
	// InitialThenIncremental sends a full snapshot of the source's
	// pre-existing oldest snapshot, then an incremental stream from it
	// up to the newly minted sync snapshot, because the target does
	// not exist but the source already had history.
	InitialThenIncremental
	// IncrementalFromMatch sends a single incremental stream from the
	// most recent snapshot common to both sides up to the newly minted
	// sync snapshot, because the target already exists.
	IncrementalFromMatch
)

// Plan is the tagged-variant replication plan spec.md §4.5 describes.
// Only the fields relevant to Kind are meaningful.
type Plan struct {
	Kind    Kind
	Oldest  string // InitialOnly, InitialThenIncremental
	Match   string // IncrementalFromMatch
	NewSync string // every kind
}

// SendStep is one `zfs send` invocation a Plan expands to. From empty
// means a full send of To; otherwise it is an incremental/`-I` send
// from From to To. Force is true only for the initial transfer into a
// target dataset that does not yet exist, so the receiver is allowed to
// roll back a partial prior attempt (spec.md §8 testable property 3).
type SendStep struct {
	From  string
	To    string
	Force bool
}

// Steps expands a Plan into the ordered SendSteps a sync needs to run.
func (p Plan) Steps() []SendStep {
	switch p.Kind {
	case InitialOnly:
		return []SendStep{{To: p.NewSync, Force: true}}
	case InitialThenIncremental:
		return []SendStep{
			{To: p.Oldest, Force: true},
			{From: p.Oldest, To: p.NewSync},
		}
	case IncrementalFromMatch:
		return []SendStep{{From: p.Match, To: p.NewSync}}
	default:
		return nil
	}
}

// Decide chooses the replication plan for one dataset, per spec.md
// §4.5. inv must be built from the source/target snapshot lists
// enumerated BEFORE newSync was minted on the source; newSync is the
// name of the sync snapshot the caller has just created there.
func Decide(inv Inventory, targetExists bool, newSync string) (Plan, error) {
	if !targetExists {
		if len(inv.Source) == 0 {
			return Plan{Kind: InitialOnly, NewSync: newSync}, nil
		}
		return Plan{Kind: InitialThenIncremental, Oldest: inv.Oldest(), NewSync: newSync}, nil
	}

	match, ok := inv.MostRecentCommon()
	if !ok {
		return Plan{}, ErrNoCommonSnapshot
	}
	return Plan{Kind: IncrementalFromMatch, Match: match, NewSync: newSync}, nil
}
