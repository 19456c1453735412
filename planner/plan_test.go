package planner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideBootstrapNoPriorSnapshots(t *testing.T) {
	inv := Inventory{Source: map[string]int64{}, Target: map[string]int64{}}
	p, err := Decide(inv, false, "syncoid_host_2026-08-01:00:00:00")
	require.NoError(t, err)
	require.Equal(t, InitialOnly, p.Kind)
	require.Equal(t, []SendStep{{To: p.NewSync, Force: true}}, p.Steps())
}

func TestDecideBootstrapWithPriorSnapshots(t *testing.T) {
	inv := Inventory{Source: map[string]int64{"old": 100, "newer": 200}, Target: map[string]int64{}}
	p, err := Decide(inv, false, "sync")
	require.NoError(t, err)
	require.Equal(t, InitialThenIncremental, p.Kind)
	require.Equal(t, "old", p.Oldest)
	require.Equal(t, []SendStep{
		{To: "old", Force: true},
		{From: "old", To: "sync"},
	}, p.Steps())
}

func TestDecideIncrementalFromMatch(t *testing.T) {
	inv := Inventory{
		Source: map[string]int64{"common": 100, "later": 200},
		Target: map[string]int64{"common": 100},
	}
	p, err := Decide(inv, true, "sync")
	require.NoError(t, err)
	require.Equal(t, IncrementalFromMatch, p.Kind)
	require.Equal(t, "common", p.Match)
	require.Equal(t, []SendStep{{From: "common", To: "sync"}}, p.Steps())
}

func TestDecideNoCommonSnapshotFails(t *testing.T) {
	inv := Inventory{
		Source: map[string]int64{"only-here": 100},
		Target: map[string]int64{"unrelated": 50},
	}
	_, err := Decide(inv, true, "sync")
	require.ErrorIs(t, err, ErrNoCommonSnapshot)
}

func TestSendStepsForceOnlyOnInitialTransferIntoAbsentTarget(t *testing.T) {
	bootstrap, _ := Decide(Inventory{Source: map[string]int64{"a": 1}}, false, "sync")
	for _, step := range bootstrap.Steps() {
		if step.From == "" {
			require.True(t, step.Force)
		} else {
			require.False(t, step.Force)
		}
	}

	incremental, _ := Decide(Inventory{
		Source: map[string]int64{"a": 1},
		Target: map[string]int64{"a": 1},
	}, true, "sync")
	for _, step := range incremental.Steps() {
		require.False(t, step.Force)
	}
}
