package replicator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrefhref/sanoid/capability"
	"github.com/hrefhref/sanoid/endpoint"
	"github.com/hrefhref/sanoid/executor"
	"github.com/hrefhref/sanoid/zfsctl"
)

type errExit struct{}

func (errExit) Error() string { return "exit status 1" }

// fakeExecutor is an in-memory ZFS pool used to exercise Runner.SyncDataset
// and SyncRecursive without real zfs/ssh/ps binaries, the way zfsctl's own
// tests fake executor.Executor.
type fakeExecutor struct {
	exists  bool
	busy    bool
	source  []zfsctl.Snapshot
	target  []zfsctl.Snapshot
	readOnly string

	created       []string
	destroyed     [][]string
	propSets      []string
	pipelineLines []string
	pipelineErr   error
}

func (f *fakeExecutor) Run(_ context.Context, _ executor.Target, _ bool, argv []string) ([][]string, error) {
	if len(argv) >= 1 && argv[0] == "ps" {
		if f.busy {
			return [][]string{{"zfs", "receive", "-F", "tgt"}}, nil
		}
		return [][]string{{"/usr/sbin/sshd"}}, nil
	}

	if len(argv) < 2 || argv[0] != "zfs" {
		return nil, nil
	}

	switch argv[1] {
	case "get":
		prop, dataset := argv[3], argv[4]
		if prop == "name" {
			if !f.exists {
				return nil, &executor.CommandError{Err: errExit{}, Stderr: "cannot open '" + dataset + "': dataset does not exist"}
			}
			return [][]string{{dataset, "name", dataset}}, nil
		}
		return [][]string{{dataset, prop, f.readOnly, "local"}}, nil

	case "set":
		f.propSets = append(f.propSets, argv[2])
		if strings.HasPrefix(argv[2], "readonly=") {
			f.readOnly = strings.TrimPrefix(argv[2], "readonly=")
		}
		return nil, nil

	case "list":
		dataset := argv[len(argv)-1]
		var snaps []zfsctl.Snapshot
		if dataset == "src" {
			snaps = f.source
		} else {
			snaps = f.target
		}
		out := make([][]string, 0, len(snaps))
		for _, s := range snaps {
			out = append(out, []string{dataset + "@" + s.Name, strconv.FormatInt(s.Ctime, 10)})
		}
		return out, nil

	case "snapshot":
		full := argv[2]
		f.created = append(f.created, full)
		parts := strings.SplitN(full, "@", 2)
		snap := zfsctl.Snapshot{Name: parts[1], Ctime: 9999}
		if parts[0] == "src" {
			f.source = append(f.source, snap)
		} else {
			f.exists = true
			f.target = append(f.target, snap)
		}
		return nil, nil

	case "destroy":
		f.destroyed = append(f.destroyed, argv)
		return nil, nil

	default:
		return nil, nil
	}
}

func (f *fakeExecutor) RunStreamed(_ context.Context, _ executor.Target, _ bool, argv []string, _ io.Reader, _ io.Writer) error {
	if len(argv) == 3 && argv[0] == "sh" && argv[1] == "-c" {
		f.pipelineLines = append(f.pipelineLines, argv[2])
	}
	return f.pipelineErr
}

func (f *fakeExecutor) Start(context.Context, executor.Target, bool, []string) (*executor.Process, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(exec_ *fakeExecutor) *Runner {
	r := NewRunner(exec_, Config{Compressor: capability.CompressorNone}, discardLogger(), "myhost")
	r.Now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func localEndpoints(t *testing.T) (endpoint.Endpoint, endpoint.Endpoint) {
	src, err := endpoint.Parse("src")
	require.NoError(t, err)
	tgt, err := endpoint.Parse("tgt")
	require.NoError(t, err)
	return src, tgt
}

func TestSyncDatasetBootstrapLocalToLocal(t *testing.T) {
	exec_ := &fakeExecutor{
		exists: false,
		source: []zfsctl.Snapshot{{Name: "a", Ctime: 100}, {Name: "b", Ctime: 200}},
	}
	r := newTestRunner(exec_)
	src, tgt := localEndpoints(t)

	err := r.SyncDataset(context.Background(), src, tgt, capability.Set{}, nil)
	require.NoError(t, err)

	require.Len(t, exec_.pipelineLines, 2)
	require.Contains(t, exec_.pipelineLines[0], "zfs send src@a")
	require.Contains(t, exec_.pipelineLines[0], "zfs receive -F tgt")
	require.Contains(t, exec_.pipelineLines[1], "zfs send -I src@a")
	require.NotContains(t, exec_.pipelineLines[1], "-F")

	// the newly minted sync snapshot is never pruned
	for _, d := range exec_.destroyed {
		require.NotContains(t, d[2], "2026-08-01")
	}
}

func TestSyncDatasetTargetBusyAbortsBeforeMutation(t *testing.T) {
	exec_ := &fakeExecutor{exists: true, busy: true}
	r := newTestRunner(exec_)
	src, tgt := localEndpoints(t)

	err := r.SyncDataset(context.Background(), src, tgt, capability.Set{}, nil)
	require.ErrorIs(t, err, ErrTargetBusy)
	require.Empty(t, exec_.created)
	require.Empty(t, exec_.pipelineLines)
}

func TestSyncDatasetNoCommonSnapshotFails(t *testing.T) {
	exec_ := &fakeExecutor{
		exists: true,
		source: []zfsctl.Snapshot{{Name: "only-here", Ctime: 100}},
		target: []zfsctl.Snapshot{{Name: "unrelated", Ctime: 50}},
	}
	r := newTestRunner(exec_)
	src, tgt := localEndpoints(t)

	err := r.SyncDataset(context.Background(), src, tgt, capability.Set{}, nil)
	require.Error(t, err)
	require.Empty(t, exec_.pipelineLines)
}

func TestSyncDatasetReadOnlyRestoredOnPipelineFailure(t *testing.T) {
	exec_ := &fakeExecutor{
		exists:   true,
		readOnly: "off",
		source:   []zfsctl.Snapshot{{Name: "common", Ctime: 100}},
		target:   []zfsctl.Snapshot{{Name: "common", Ctime: 100}},
		pipelineErr: &executor.CommandError{Err: errExit{}, Stderr: "broken pipe"},
	}
	r := newTestRunner(exec_)
	src, tgt := localEndpoints(t)

	err := r.SyncDataset(context.Background(), src, tgt, capability.Set{}, nil)
	require.True(t, errors.Is(err, ErrPipelineFailure))
	require.Equal(t, "off", exec_.readOnly)
	require.Contains(t, exec_.propSets, "readonly=on")
	require.Equal(t, "readonly=off", exec_.propSets[len(exec_.propSets)-1])
}

func TestRetargetSubstitutesSourcePrefix(t *testing.T) {
	// ListChildren isn't modeled by fakeExecutor's "list" branch (it
	// returns dataset@-named snapshot rows); recursion itself is
	// exercised via retarget and per-child independence at the unit
	// level instead.
	require.Equal(t, "pool/y/a", retarget("pool/x/a", "pool/x", "pool/y"))
	require.Equal(t, "pool/y", retarget("pool/x", "pool/x", "pool/y"))
}
