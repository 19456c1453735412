package zfsctl

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrefhref/sanoid/executor"
)

// fakeExecutor is an in-memory executor.Executor used to unit test the
// parsing logic in this package without a real `zfs` binary, the way the
// teacher's TestZPool needs a real root-owned zpool but this package's
// logic does not touch ZFS state directly.
type fakeExecutor struct {
	runFn func(argv []string) ([][]string, error)
}

func (f *fakeExecutor) Run(_ context.Context, _ executor.Target, _ bool, argv []string) ([][]string, error) {
	return f.runFn(argv)
}

func (f *fakeExecutor) RunStreamed(context.Context, executor.Target, bool, []string, io.Reader, io.Writer) error {
	return nil
}

func (f *fakeExecutor) Start(context.Context, executor.Target, bool, []string) (*executor.Process, error) {
	return nil, nil
}

func TestSnapshotsParsesCreationTimes(t *testing.T) {
	exec_ := &fakeExecutor{runFn: func(argv []string) ([][]string, error) {
		return [][]string{
			{"tank/data@old", "100"},
			{"tank/data@new", "200"},
		}, nil
	}}
	c := New(exec_)

	snaps, err := c.Snapshots(context.Background(), executor.Target{}, "tank/data")
	require.NoError(t, err)
	require.Equal(t, []Snapshot{
		{Name: "old", Ctime: 100},
		{Name: "new", Ctime: 200},
	}, snaps)
}

func TestSnapshotsIgnoresUnrelatedLines(t *testing.T) {
	exec_ := &fakeExecutor{runFn: func(argv []string) ([][]string, error) {
		return [][]string{
			{"tank/other@snap", "100"},
			{"garbage"},
		}, nil
	}}
	c := New(exec_)

	snaps, err := c.Snapshots(context.Background(), executor.Target{}, "tank/data")
	require.NoError(t, err)
	require.Empty(t, snaps)
}

func TestDatasetExistsTrue(t *testing.T) {
	exec_ := &fakeExecutor{runFn: func(argv []string) ([][]string, error) {
		return [][]string{{"tank/data", "name", "tank/data"}}, nil
	}}
	c := New(exec_)

	exists, err := c.DatasetExists(context.Background(), executor.Target{}, "tank/data")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestDatasetExistsFalseOnNotFound(t *testing.T) {
	exec_ := &fakeExecutor{runFn: func(argv []string) ([][]string, error) {
		return nil, &executor.CommandError{Err: errExit{}, Stderr: "cannot open 'tank/data': dataset does not exist"}
	}}
	c := New(exec_)

	exists, err := c.DatasetExists(context.Background(), executor.Target{}, "tank/data")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestReceiveInProgress(t *testing.T) {
	exec_ := &fakeExecutor{runFn: func(argv []string) ([][]string, error) {
		return [][]string{
			{"/usr/sbin/sshd"},
			{"zfs", "receive", "-F", "tank/data"},
		}, nil
	}}
	c := New(exec_)

	busy, err := c.ReceiveInProgress(context.Background(), executor.Target{}, "tank/data")
	require.NoError(t, err)
	require.True(t, busy)
}

func TestReceiveNotInProgress(t *testing.T) {
	exec_ := &fakeExecutor{runFn: func(argv []string) ([][]string, error) {
		return [][]string{{"/usr/sbin/sshd"}}, nil
	}}
	c := New(exec_)

	busy, err := c.ReceiveInProgress(context.Background(), executor.Target{}, "tank/data")
	require.NoError(t, err)
	require.False(t, busy)
}

func TestEstimateSendParsesSize(t *testing.T) {
	exec_ := &fakeExecutor{runFn: func(argv []string) ([][]string, error) {
		return [][]string{
			{"full", "tank/data@new"},
			{"size", "123456"},
		}, nil
	}}
	c := New(exec_)

	size := c.EstimateSend(context.Background(), executor.Target{}, SendSpec{Dataset: "tank/data", To: "new"})
	require.EqualValues(t, 123456, size)
}

func TestEstimateSendClampsToFloor(t *testing.T) {
	exec_ := &fakeExecutor{runFn: func(argv []string) ([][]string, error) {
		return [][]string{{"size", "10"}}, nil
	}}
	c := New(exec_)

	size := c.EstimateSend(context.Background(), executor.Target{}, SendSpec{Dataset: "tank/data", To: "new"})
	require.EqualValues(t, estimateFloor, size)
}

func TestEstimateSendZeroOnFailure(t *testing.T) {
	exec_ := &fakeExecutor{runFn: func(argv []string) ([][]string, error) {
		return nil, errExit{}
	}}
	c := New(exec_)

	size := c.EstimateSend(context.Background(), executor.Target{}, SendSpec{Dataset: "tank/data", To: "new"})
	require.Zero(t, size)
}

type errExit struct{}

func (errExit) Error() string { return "exit status 1" }
