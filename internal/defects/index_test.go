package defects

import (
	"testing"

	"github.com/firehall/rigcheck/internal/tracker"
	"github.com/stretchr/testify/require"
)

func TestBuildIndex(t *testing.T) {
	idx := BuildIndex([]tracker.Issue{
		{Number: 10, Title: "[Engine 1] Cab: Flashlight - Missing"},
		{Number: 11, Title: "[Engine 1] Rear: Cone - Damaged"},
		{Number: 12, Title: "weekly maintenance reminder"}, // foreign, skipped
	})
	require.Len(t, idx, 2)
	require.Equal(t, IssueRef{Number: 10, Status: "missing"}, idx["Cab:Flashlight"])
	require.Equal(t, IssueRef{Number: 11, Status: "damaged"}, idx["Rear:Cone"])
}

func TestBuildIndex_LastWriteWins(t *testing.T) {
	// Two open issues for the same identity can only come from manual
	// tracker edits; the later one shadows the earlier.
	idx := BuildIndex([]tracker.Issue{
		{Number: 10, Title: "[Engine 1] Cab: Flashlight - Missing"},
		{Number: 20, Title: "[Engine 1] Cab: Flashlight - Damaged"},
	})
	require.Len(t, idx, 1)
	require.Equal(t, 20, idx["Cab:Flashlight"].Number)
}

func TestFromIssue(t *testing.T) {
	d, ok := FromIssue(tracker.Issue{
		Number: 5,
		Title:  "[Tower 1] Rear: Ladder Belt - Damaged",
		Body:   "strap frayed",
		State:  "open",
		Author: "jdoe",
		Labels: []string{"defect", "Tower 1", "damaged"},
	}, "resolved")
	require.True(t, ok)
	require.Equal(t, "Tower 1", d.Apparatus)
	require.Equal(t, "damaged", d.Status)
	require.False(t, d.Resolved)

	d, ok = FromIssue(tracker.Issue{
		Number: 6,
		Title:  "[Tower 1] Rear: Ladder Belt - Damaged",
		State:  "closed",
		Labels: []string{"defect", "resolved"},
	}, "resolved")
	require.True(t, ok)
	require.True(t, d.Resolved)

	_, ok = FromIssue(tracker.Issue{Number: 7, Title: "not a defect"}, "resolved")
	require.False(t, ok)
}
