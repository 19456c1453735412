// Package zfsctl wraps the `zfs` and `ps` command-line tools with the
// typed operations spec.md §4.3 specifies, running each one through an
// executor.Executor so it transparently targets either the local machine
// or a remote one reached over the endpoint package's SSH control socket.
//
// Grounded on vansante-go-zfsutils/zfs.go and dataset.go, trimmed to the
// subset of ZFS surface the replication planner and pipeline need, and
// generalized to accept an executor.Target per call instead of always
// shelling out locally.
package zfsctl

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hrefhref/sanoid/executor"
)

const Binary = "zfs"

// estimateFloor is the minimum value EstimateSend returns for a positive
// but tiny estimate, so a progress meter never shows an implausible size.
const estimateFloor = 4096

// Snapshot is a single ZFS snapshot observation: its name (without the
// dataset@ prefix) and creation time in seconds since the epoch.
type Snapshot struct {
	Name  string
	Ctime int64
}

// Client performs ZFS operations through an Executor.
type Client struct {
	Exec executor.Executor
}

// New returns a Client backed by the given Executor.
func New(exec_ executor.Executor) *Client {
	return &Client{Exec: exec_}
}

func (c *Client) run(ctx context.Context, target executor.Target, args ...string) ([][]string, error) {
	out, err := c.Exec.Run(ctx, target, true, append([]string{Binary}, args...))
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ListChildren recursively enumerates dataset's children, including
// dataset itself as the first entry, sorted depth-first by `zfs list`.
func (c *Client) ListChildren(ctx context.Context, target executor.Target, dataset string) ([]string, error) {
	out, err := c.run(ctx, target, "list", "-r", "-H", "-o", "name", dataset)
	if err != nil {
		return nil, fmt.Errorf("zfsctl: error listing children of %s: %w", dataset, err)
	}

	names := make([]string, 0, len(out))
	for _, fields := range out {
		if len(fields) == 0 {
			continue
		}
		names = append(names, fields[0])
	}
	return names, nil
}

// Snapshots enumerates the depth-1 snapshots of dataset with their
// creation times. Lines not belonging to dataset are ignored.
func (c *Client) Snapshots(ctx context.Context, target executor.Target, dataset string) ([]Snapshot, error) {
	out, err := c.run(ctx, target, "list", "-H", "-p", "-d", "1", "-t", "snapshot",
		"-o", "name,creation", dataset)
	if err != nil {
		if err == ErrDatasetNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("zfsctl: error listing snapshots of %s: %w", dataset, err)
	}

	prefix := dataset + "@"
	snaps := make([]Snapshot, 0, len(out))
	for _, fields := range out {
		if len(fields) != 2 || !strings.HasPrefix(fields[0], prefix) {
			continue
		}
		ctime, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("zfsctl: error parsing creation time for %s: %w", fields[0], err)
		}
		snaps = append(snaps, Snapshot{
			Name:  strings.TrimPrefix(fields[0], prefix),
			Ctime: ctime,
		})
	}
	return snaps, nil
}

// GetProp reads a single property's value from dataset.
func (c *Client) GetProp(ctx context.Context, target executor.Target, dataset, prop string) (string, error) {
	out, err := c.run(ctx, target, "get", "-H", prop, dataset)
	if err != nil {
		return "", fmt.Errorf("zfsctl: error reading %s on %s: %w", prop, dataset, err)
	}
	if len(out) == 0 || len(out[0]) < 3 {
		return "", fmt.Errorf("zfsctl: unexpected output reading %s on %s", prop, dataset)
	}
	return out[0][2], nil
}

// SetProp writes prop=value on dataset.
func (c *Client) SetProp(ctx context.Context, target executor.Target, dataset, prop, value string) error {
	_, err := c.run(ctx, target, "set", fmt.Sprintf("%s=%s", prop, value), dataset)
	if err != nil {
		return fmt.Errorf("zfsctl: error setting %s on %s: %w", prop, dataset, err)
	}
	return nil
}

// CreateSnapshot creates dataset@name.
func (c *Client) CreateSnapshot(ctx context.Context, target executor.Target, dataset, name string) error {
	_, err := c.run(ctx, target, "snapshot", fmt.Sprintf("%s@%s", dataset, name))
	if err != nil {
		return fmt.Errorf("zfsctl: error creating snapshot %s@%s: %w", dataset, name, err)
	}
	return nil
}

// Destroy destroys one or more snapshots of dataset in a single batched
// `zfs destroy` invocation using ZFS's comma-separated snapshot list
// syntax, e.g. `zfs destroy dataset@a,b,c`. Callers that must stay under a
// round-trip budget should chunk names themselves before calling (see
// syncsnap.Prune).
func (c *Client) Destroy(ctx context.Context, target executor.Target, dataset string, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := c.run(ctx, target, "destroy", fmt.Sprintf("%s@%s", dataset, strings.Join(names, ",")))
	if err != nil {
		return fmt.Errorf("zfsctl: error destroying %d snapshot(s) of %s: %w", len(names), dataset, err)
	}
	return nil
}

// DatasetExists reports whether dataset currently exists.
func (c *Client) DatasetExists(ctx context.Context, target executor.Target, dataset string) (bool, error) {
	out, err := c.run(ctx, target, "get", "-H", "name", dataset)
	if err != nil {
		if err == ErrDatasetNotFound {
			return false, nil
		}
		return false, fmt.Errorf("zfsctl: error checking existence of %s: %w", dataset, err)
	}
	return len(out) > 0 && len(out[0]) > 0 && out[0][0] == dataset, nil
}

// ReceiveInProgress scans the process table on target for a `zfs receive`
// process whose argv contains dataset as a substring. It is inherently
// racy (spec.md §9) and must be re-checked immediately before every send.
func (c *Client) ReceiveInProgress(ctx context.Context, target executor.Target, dataset string) (bool, error) {
	out, err := c.Exec.Run(ctx, target, false, []string{"ps", "-eo", "args"})
	if err != nil {
		return false, fmt.Errorf("zfsctl: error listing processes: %w", err)
	}

	for _, fields := range out {
		line := strings.Join(fields, " ")
		if strings.Contains(line, "zfs receive") && strings.Contains(line, dataset) {
			return true, nil
		}
	}
	return false, nil
}

// SendSpec describes a `zfs send` dry-run target for EstimateSend: either a
// full send of To, or an incremental send from From to To.
type SendSpec struct {
	Dataset string
	From    string // snapshot name only, e.g. "old"; empty for a full send
	To      string // snapshot name only, e.g. "new"
}

// EstimateSend runs a dry-run `zfs send -nvP` and parses the estimated byte
// count it reports. It returns 0 (never an error) when the dry run fails or
// its output cannot be parsed, since the estimate only feeds an optional
// progress meter (spec.md §4.3, §7 EstimateUnavailable).
func (c *Client) EstimateSend(ctx context.Context, target executor.Target, spec SendSpec) int64 {
	args := []string{"send", "-n", "-v", "-P"}
	to := fmt.Sprintf("%s@%s", spec.Dataset, spec.To)
	if spec.From != "" {
		args = append(args, "-I", fmt.Sprintf("%s@%s", spec.Dataset, spec.From), to)
	} else {
		args = append(args, to)
	}

	out, err := c.run(ctx, target, args...)
	if err != nil {
		return 0
	}

	for _, fields := range out {
		if len(fields) == 2 && fields[0] == "size" {
			size, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil || size <= 0 {
				return 0
			}
			if size < estimateFloor {
				return estimateFloor
			}
			return size
		}
	}
	return 0
}
