package models

import "time"

// Defect status vocabulary. Capitalized forms are part of the issue title
// grammar, so the set is closed.
const (
	DefectStatusMissing = "missing"
	DefectStatusDamaged = "damaged"
)

// Identity is the natural key of a defect. Two reports with the same
// identity reconcile to the same open issue.
type Identity struct {
	Apparatus   string
	Compartment string
	Item        string
}

// Key returns the defect-index key for this identity within one apparatus.
func (id Identity) Key() string {
	return id.Compartment + ":" + id.Item
}

// Label returns the human-readable form used in aggregated error messages.
func (id Identity) Label() string {
	return id.Compartment + ": " + id.Item
}

// Defect is a derived view of a tracker issue. It is never persisted
// separately; the tracker is the system of record.
type Defect struct {
	IssueNumber int       `json:"issueNumber"`
	Apparatus   string    `json:"apparatus"`
	Compartment string    `json:"compartment"`
	Item        string    `json:"item"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	ReportedBy  string    `json:"reportedBy,omitempty"`
	ReportedAt  time.Time `json:"reportedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Resolved    bool      `json:"resolved"`
}

func (d *Defect) Identity() Identity {
	return Identity{Apparatus: d.Apparatus, Compartment: d.Compartment, Item: d.Item}
}

// LowStockEntry is one row of the trailing-window restock report.
type LowStockEntry struct {
	Item        string   `json:"item"`
	Compartment string   `json:"compartment"`
	Apparatus   []string `json:"apparatus"`
	Occurrences int      `json:"occurrences"`
}
