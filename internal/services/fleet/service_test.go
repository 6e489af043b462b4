package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/firehall/rigcheck/internal/models"
	"github.com/firehall/rigcheck/internal/tracker"
	"github.com/firehall/rigcheck/internal/tracker/fake"
)

var testRoster = []string{"Engine 1", "Engine 2", "Tower 1", "Rescue 1"}

func newTestService(trk tracker.Client) *Service {
	return New(trk, zerolog.Nop(), Config{Roster: testRoster})
}

func seedDefect(trk *fake.Tracker, number int, title, state string, updatedAt time.Time) {
	var closedAt *time.Time
	if state == "closed" {
		t := updatedAt
		closedAt = &t
	}
	trk.Seed(tracker.Issue{
		Number:    number,
		Title:     title,
		State:     state,
		Labels:    []string{"defect"},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
		ClosedAt:  closedAt,
	})
}

func TestStatus_ZeroFilledRoster(t *testing.T) {
	svc := newTestService(fake.New())

	got, err := svc.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int{
		"Engine 1": 0,
		"Engine 2": 0,
		"Tower 1":  0,
		"Rescue 1": 0,
	}, got)
}

func TestStatus_CountsOpenDefectsPerApparatus(t *testing.T) {
	trk := fake.New()
	now := time.Now().UTC()
	seedDefect(trk, 1, "[Engine 1] Cab: Flashlight - Missing", "open", now)
	seedDefect(trk, 2, "[Engine 1] Rear: Cribbing - Damaged", "open", now)
	seedDefect(trk, 3, "[Tower 1] Cab: Radio - Missing", "open", now)
	// Closed and unparseable issues never count.
	seedDefect(trk, 4, "[Engine 1] Cab: Axe - Missing", "closed", now)
	seedDefect(trk, 5, "Wash the bay floor", "open", now)
	// Unknown apparatus is skipped, not added to the map.
	seedDefect(trk, 6, "[Ladder 99] Cab: Radio - Missing", "open", now)

	got, err := newTestService(trk).Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int{
		"Engine 1": 2,
		"Engine 2": 0,
		"Tower 1":  1,
		"Rescue 1": 0,
	}, got)
}

func TestDefects_ListsOpenForApparatus(t *testing.T) {
	trk := fake.New()
	now := time.Now().UTC()
	seedDefect(trk, 1, "[Engine 1] Cab: Flashlight - Missing", "open", now)
	seedDefect(trk, 2, "[Engine 1] Rear: Cribbing - Damaged", "open", now)
	seedDefect(trk, 3, "[Engine 1] Cab: Axe - Missing", "closed", now)

	// The fake ANDs labels, so scope the seeds to the apparatus label too.
	for _, n := range []int{1, 2, 3} {
		is, err := trk.GetIssue(context.Background(), n)
		require.NoError(t, err)
		labels := append(is.Labels, "Engine 1")
		cp := *is
		cp.Labels = labels
		trk.Seed(cp)
	}

	got, err := newTestService(trk).Defects(context.Background(), "Engine 1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Flashlight", got[0].Item)
	require.Equal(t, models.DefectStatusMissing, got[0].Status)
	require.Equal(t, "Cribbing", got[1].Item)
	require.Equal(t, models.DefectStatusDamaged, got[1].Status)
}

func TestLowStock_GroupsAcrossApparatus(t *testing.T) {
	trk := fake.New()
	now := time.Now().UTC()
	seedDefect(trk, 1, "[Engine 1] Cab: Flashlight - Missing", "open", now)
	seedDefect(trk, 2, "[Engine 2] Cab: Flashlight - Missing", "closed", now.Add(-time.Hour))
	seedDefect(trk, 3, "[Tower 1] Cab: Flashlight - Missing", "open", now)
	seedDefect(trk, 4, "[Engine 1] Rear: Cribbing - Missing", "open", now)
	seedDefect(trk, 5, "[Rescue 1] Rear: Cribbing - Missing", "open", now)
	// Damaged and singleton entries stay out of the report.
	seedDefect(trk, 6, "[Engine 1] Cab: Radio - Damaged", "open", now)
	seedDefect(trk, 7, "[Engine 2] Cab: Radio - Damaged", "open", now)
	seedDefect(trk, 8, "[Engine 1] Cab: Map Book - Missing", "open", now)

	got, err := newTestService(trk).LowStock(context.Background())
	require.NoError(t, err)
	require.Equal(t, []models.LowStockEntry{
		{
			Item:        "Flashlight",
			Compartment: "Cab",
			Apparatus:   []string{"Engine 1", "Engine 2", "Tower 1"},
			Occurrences: 3,
		},
		{
			Item:        "Cribbing",
			Compartment: "Rear",
			Apparatus:   []string{"Engine 1", "Rescue 1"},
			Occurrences: 2,
		},
	}, got)
}

func TestLowStock_WindowExcludesStaleIssues(t *testing.T) {
	trk := fake.New()
	now := time.Now().UTC()
	seedDefect(trk, 1, "[Engine 1] Cab: Flashlight - Missing", "closed", now.AddDate(0, 0, -45))
	seedDefect(trk, 2, "[Engine 2] Cab: Flashlight - Missing", "open", now)

	got, err := newTestService(trk).LowStock(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}
