package replicator

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hrefhref/sanoid/capability"
	"github.com/hrefhref/sanoid/endpoint"
)

// SyncRecursive discovers source's children (including source itself,
// the way zfsctl.ListChildren enumerates) and applies SyncDataset to
// each independently, per spec.md §4.8. A child's failure is logged and
// does not stop the remainder; the returned error is the first one
// encountered, reflecting the overall exit status.
func (r *Runner) SyncRecursive(ctx context.Context, source, target endpoint.Endpoint, caps capability.Set, out io.Writer) error {
	children, err := r.ZFS.ListChildren(ctx, source.Target(), source.Dataset)
	if err != nil {
		return fmt.Errorf("replicator: error enumerating children of %s: %w", source.Dataset, err)
	}

	var firstErr error
	for _, child := range children {
		childSource := source
		childSource.Dataset = child

		childTarget := target
		childTarget.Dataset = retarget(child, source.Dataset, target.Dataset)

		if err := r.SyncDataset(ctx, childSource, childTarget, caps, out); err != nil {
			r.Logger.Error("replicator: error syncing dataset", "source", child, "target", childTarget.Dataset, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// retarget computes child's target path by substituting sourcePrefix with
// targetPrefix, per spec.md §4.3's suffix-substitution rule.
func retarget(child, sourcePrefix, targetPrefix string) string {
	if child == sourcePrefix {
		return targetPrefix
	}
	return targetPrefix + strings.TrimPrefix(child, sourcePrefix)
}
