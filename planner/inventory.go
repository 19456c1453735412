// Package planner builds the merged snapshot inventory of a dataset's
// source and target sides and decides which of the three replication
// plans spec.md §4.5 describes to execute.
//
// New code — the teacher has no standalone planner, but the shape of its
// core loop is grounded on job/snapshots_send.go's reconcileSnapshots
// (walking a local/remote snapshot pair to find the continuation point)
// and job/util.go's orderSnapshotsByCreated/snapshotsContain helpers,
// rewritten around spec.md's oldest/most-recent-common selection rules
// instead of the teacher's send-everything-after-common-point policy.
package planner

import (
	"sort"

	"github.com/hrefhref/sanoid/zfsctl"
)

// Inventory is the merged `side → name → ctime` snapshot map spec.md §3
// describes, built fresh per dataset sync.
type Inventory struct {
	Source map[string]int64
	Target map[string]int64
}

// BuildInventory merges the source and target snapshot lists into an
// Inventory. The merged inventory always contains every source snapshot
// plus every target snapshot (spec.md §3 invariant).
func BuildInventory(source, target []zfsctl.Snapshot) Inventory {
	inv := Inventory{
		Source: make(map[string]int64, len(source)),
		Target: make(map[string]int64, len(target)),
	}
	for _, s := range source {
		inv.Source[s.Name] = s.Ctime
	}
	for _, s := range target {
		inv.Target[s.Name] = s.Ctime
	}
	return inv
}

// sortedByCtime returns snapshot names sorted by ascending ctime, with
// ties broken by ascending lexical name for determinism.
func sortedByCtime(m map[string]int64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if m[names[i]] != m[names[j]] {
			return m[names[i]] < m[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Oldest returns the name of the source's oldest snapshot. It panics if
// inv.Source is empty; callers must check that first.
func (inv Inventory) Oldest() string {
	names := sortedByCtime(inv.Source)
	return names[0]
}

// MostRecentCommon returns the name of the most recent snapshot present
// on both sides with equal creation times, per spec.md §4.5/§8 testable
// property 6: greatest source ctime first, ties broken by the lexically
// greatest name. ok is false when no common snapshot exists.
func (inv Inventory) MostRecentCommon() (name string, ok bool) {
	names := sortedByCtime(inv.Source)
	for i := len(names) - 1; i >= 0; i-- {
		// sortedByCtime is ascending with ascending lexical tie-break;
		// walking it backwards already yields descending ctime with
		// descending lexical tie-break among equal ctimes.
		n := names[i]
		tgtCtime, onTarget := inv.Target[n]
		if onTarget && tgtCtime == inv.Source[n] {
			return n, true
		}
	}
	return "", false
}
