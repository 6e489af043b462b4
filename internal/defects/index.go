package defects

import (
	"github.com/firehall/rigcheck/internal/tracker"
)

// IssueRef points the index at the single open issue for an identity.
type IssueRef struct {
	Number int
	Status string
}

// BuildIndex maps "compartment:item" keys onto the open issue currently
// representing that defect. The input is expected to be pre-scoped to one
// apparatus (state=open, defect marker + apparatus labels).
//
// Unparseable titles are skipped. If two open issues decode to the same key
// (possible after manual tracker edits), the last one in iteration order
// wins; duplicates are tolerated, not treated as an error.
func BuildIndex(issues []tracker.Issue) map[string]IssueRef {
	idx := make(map[string]IssueRef, len(issues))
	for _, is := range issues {
		dec, ok := DecodeTitle(is.Title)
		if !ok {
			continue
		}
		idx[dec.Identity.Key()] = IssueRef{Number: is.Number, Status: dec.Status}
	}
	return idx
}
