package inspections

import (
	"fmt"
	"strings"

	"github.com/firehall/rigcheck/internal/models"
)

// Bodies and comments are plain markdown for humans browsing the tracker.
// Nothing parses them back; all machine-readable identity lives in titles
// and labels.

func inspectorLine(u models.Inspector) string {
	if u.Rank != "" {
		return u.Rank + " " + u.Name
	}
	return u.Name
}

func defectBody(sub *models.InspectionSubmission, d models.ReportedDefect) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Apparatus:** %s\n", sub.Apparatus)
	fmt.Fprintf(&b, "**Compartment:** %s\n", d.Compartment)
	fmt.Fprintf(&b, "**Item:** %s\n", d.Item)
	fmt.Fprintf(&b, "**Status:** %s\n", d.Status)
	fmt.Fprintf(&b, "**Reported by:** %s\n", inspectorLine(sub.User))
	fmt.Fprintf(&b, "**Date:** %s\n", sub.Date.Format("2006-01-02"))
	if d.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n", d.Notes)
	}
	return b.String()
}

func verificationComment(sub *models.InspectionSubmission, d models.ReportedDefect) string {
	c := fmt.Sprintf("Still %s. Verified by %s on %s.",
		strings.ToLower(d.Status), inspectorLine(sub.User), sub.Date.Format("2006-01-02"))
	if d.Notes != "" {
		c += "\n\n" + d.Notes
	}
	return c
}

func logBody(sub *models.InspectionSubmission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily inspection of %s completed by %s.\n\n", sub.Apparatus, inspectorLine(sub.User))
	fmt.Fprintf(&b, "- Items checked: %d\n", len(sub.Items))
	fmt.Fprintf(&b, "- Defects found: %d\n", len(sub.Defects))
	if len(sub.Defects) > 0 {
		b.WriteString("\nDefects:\n")
		for _, d := range sub.Defects {
			fmt.Fprintf(&b, "- %s: %s - %s\n", d.Compartment, d.Item, d.Status)
		}
	}
	return b.String()
}

func resolutionComment(note, resolvedBy string) string {
	c := "Resolved"
	if resolvedBy != "" {
		c += " by " + resolvedBy
	}
	c += "."
	if note != "" {
		c += "\n\n" + note
	}
	return c
}
