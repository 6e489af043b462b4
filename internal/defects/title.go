// Package defects maps tracker issues onto equipment defects. The issue
// title doubles as the defect's identity key, so encoding and decoding are
// the contract the whole reconciliation flow hangs on.
package defects

import (
	"strings"

	"github.com/firehall/rigcheck/internal/models"
)

// Status words as rendered in titles. Decoding is case-sensitive literal
// matching, so the capitalization here is part of the grammar.
var statusWords = map[string]string{
	models.DefectStatusMissing: "Missing",
	models.DefectStatusDamaged: "Damaged",
}

// Decoded is the result of parsing a defect title.
type Decoded struct {
	Identity models.Identity
	Status   string // missing | damaged
}

// EncodeTitle renders a defect identity and status as the issue title:
//
//	[{apparatus}] {compartment}: {item} - {Missing|Damaged}
func EncodeTitle(id models.Identity, status string) string {
	word := statusWords[status]
	if word == "" {
		word = statusWords[models.DefectStatusMissing]
	}
	return "[" + id.Apparatus + "] " + id.Compartment + ": " + id.Item + " - " + word
}

// DecodeTitle parses a defect title back into its identity and status.
// The second return is false for anything that does not match the grammar;
// such issues are foreign to rigcheck and are skipped, never errored on.
func DecodeTitle(title string) (Decoded, bool) {
	if !strings.HasPrefix(title, "[") {
		return Decoded{}, false
	}
	end := strings.Index(title, "] ")
	if end < 1 {
		return Decoded{}, false
	}
	apparatus := title[1:end]
	rest := title[end+2:]

	colon := strings.Index(rest, ": ")
	if colon < 1 {
		return Decoded{}, false
	}
	compartment := rest[:colon]
	rest = rest[colon+2:]

	dash := strings.LastIndex(rest, " - ")
	if dash < 1 {
		return Decoded{}, false
	}
	item := rest[:dash]
	word := rest[dash+3:]

	var status string
	switch word {
	case "Missing":
		status = models.DefectStatusMissing
	case "Damaged":
		status = models.DefectStatusDamaged
	default:
		return Decoded{}, false
	}

	return Decoded{
		Identity: models.Identity{Apparatus: apparatus, Compartment: compartment, Item: item},
		Status:   status,
	}, true
}

// LogTitle renders the inspection audit-log title for an apparatus and an
// ISO date, e.g. "[Engine 1] Daily Inspection - 2026-08-28".
func LogTitle(apparatus, isoDate string) string {
	return "[" + apparatus + "] Daily Inspection - " + isoDate
}

// ValidField reports whether a free-form identity field can survive the
// title grammar. Fields containing the delimiter characters would make the
// encoded title ambiguous and are refused at submission time.
func ValidField(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return !strings.ContainsAny(s, ":-[]")
}
