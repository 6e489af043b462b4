// Package messages defines the events rigcheck publishes for downstream
// consumers (dashboards, notifiers). Delivery beyond the broker is someone
// else's problem.
package messages

import (
	"time"

	"github.com/firehall/rigcheck/internal/models"
)

// InspectionCompleted is emitted once per fully-durable submission, after
// the audit log entry exists.
type InspectionCompleted struct {
	Apparatus     string    `json:"apparatus"`
	Inspector     string    `json:"inspector"`
	InspectorRank string    `json:"inspector_rank,omitempty"`
	Date          time.Time `json:"date"`
	ItemsChecked  int       `json:"items_checked"`
	DefectsFound  int       `json:"defects_found"`
	LogIssue      int       `json:"log_issue"`
}

// DefectResolved is emitted after an admin closes a defect.
type DefectResolved struct {
	IssueNumber int       `json:"issue_number"`
	Apparatus   string    `json:"apparatus,omitempty"`
	ResolvedBy  string    `json:"resolved_by"`
	ResolvedAt  time.Time `json:"resolved_at"`
	Note        string    `json:"note,omitempty"`
}

// LowStockAlert carries the restock signal computed by the worker.
type LowStockAlert struct {
	GeneratedAt time.Time              `json:"generated_at"`
	WindowDays  int                    `json:"window_days"`
	Entries     []models.LowStockEntry `json:"entries"`
}
