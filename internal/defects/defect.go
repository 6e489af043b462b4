package defects

import (
	"github.com/firehall/rigcheck/internal/models"
	"github.com/firehall/rigcheck/internal/tracker"
)

// FromIssue reconstructs the derived defect view from a tracker issue.
// Returns false when the title does not follow the defect grammar.
func FromIssue(is tracker.Issue, resolvedLabel string) (*models.Defect, bool) {
	dec, ok := DecodeTitle(is.Title)
	if !ok {
		return nil, false
	}
	return &models.Defect{
		IssueNumber: is.Number,
		Apparatus:   dec.Identity.Apparatus,
		Compartment: dec.Identity.Compartment,
		Item:        dec.Identity.Item,
		Status:      dec.Status,
		Notes:       is.Body,
		ReportedBy:  is.Author,
		ReportedAt:  is.CreatedAt,
		UpdatedAt:   is.UpdatedAt,
		Resolved:    is.State == "closed" || is.HasLabel(resolvedLabel),
	}, true
}
