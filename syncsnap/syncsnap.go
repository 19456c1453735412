// Package syncsnap mints and prunes the host-scoped sync snapshots
// spec.md §4.6 describes: a fresh `syncoid_<hostname>_<stamp>` snapshot
// taken on the source before every send, and the cleanup of prior ones
// left behind by earlier successful runs.
//
// New code, grounded on zfsctl.Client's CreateSnapshot/Destroy for the
// actual ZFS calls and job/util.go's naming-prefix filtering idiom for
// deciding which snapshots belong to this tool.
package syncsnap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hrefhref/sanoid/executor"
	"github.com/hrefhref/sanoid/zfsctl"
)

const prefix = "syncoid"

// Name builds the sync snapshot name for hostname at t, in the exact
// `syncoid_<hostname>_YYYY-MM-DD:HH:MM:SS` form spec.md §4.6 requires,
// using t's local-time representation.
func Name(hostname string, t time.Time) string {
	stamp := t.Local().Format("2006-01-02:15:04:05")
	return fmt.Sprintf("%s_%s_%s", prefix, hostname, stamp)
}

// OwnPrefix returns the name prefix identifying hostname's sync
// snapshots, e.g. "syncoid_myhost_".
func OwnPrefix(hostname string) string {
	return fmt.Sprintf("%s_%s_", prefix, hostname)
}

// Mint creates a new sync snapshot on dataset at target and returns its
// name. Per spec.md §4.6 this always runs on the source, before any send.
func Mint(ctx context.Context, zfs *zfsctl.Client, target executor.Target, dataset, hostname string, now time.Time) (string, error) {
	name := Name(hostname, now)
	if err := zfs.CreateSnapshot(ctx, target, dataset, name); err != nil {
		return "", fmt.Errorf("syncsnap: error minting sync snapshot: %w", err)
	}
	return name, nil
}

// pruneBatchSize caps how many snapshots one `zfs destroy` call removes,
// a tuning knob for SSH round trips, not a correctness property.
const pruneBatchSize = 10

// Prune destroys every prior sync snapshot of dataset on target owned by
// hostname, excluding keep (normally the snapshot just minted for this
// run). Snapshots are destroyed in batches of at most pruneBatchSize.
func Prune(ctx context.Context, zfs *zfsctl.Client, target executor.Target, dataset, hostname, keep string, snaps []zfsctl.Snapshot) error {
	own := OwnPrefix(hostname)

	candidates := make([]string, 0, len(snaps))
	for _, s := range snaps {
		if s.Name == keep {
			continue
		}
		if !strings.HasPrefix(s.Name, own) {
			continue
		}
		candidates = append(candidates, s.Name)
	}
	sort.Strings(candidates)

	for start := 0; start < len(candidates); start += pruneBatchSize {
		end := start + pruneBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		if err := zfs.Destroy(ctx, target, dataset, candidates[start:end]...); err != nil {
			return fmt.Errorf("syncsnap: error pruning snapshots of %s: %w", dataset, err)
		}
	}
	return nil
}
