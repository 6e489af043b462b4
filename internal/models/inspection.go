package models

import "time"

// Inspector identifies who performed or resolved an inspection action.
type Inspector struct {
	Name string `json:"name"`
	Rank string `json:"rank"`
}

// ReportedItem is one checklist line from a completed equipment inspection,
// including items that passed.
type ReportedItem struct {
	Compartment string `json:"compartment"`
	Item        string `json:"item"`
	Present     bool   `json:"present"`
	Condition   string `json:"condition,omitempty"`
}

// ReportedDefect is the subset of reported items that needs action.
type ReportedDefect struct {
	Compartment string `json:"compartment"`
	Item        string `json:"item"`
	Status      string `json:"status"` // missing | damaged
	Notes       string `json:"notes,omitempty"`
}

// InspectionSubmission is one completed checklist batch. It is ephemeral:
// consumed once, producing zero or more tracker issues and exactly one
// closed log entry when everything succeeds.
type InspectionSubmission struct {
	User      Inspector        `json:"user"`
	Apparatus string           `json:"apparatus"`
	Date      time.Time        `json:"date"`
	Items     []ReportedItem   `json:"items"`
	Defects   []ReportedDefect `json:"defects"`
}
