// Package release holds the vehicle release decision for safety
// inspections. The decision is derived, never stored: any mutation of item
// statuses (wizard step or later admin edit) recomputes it from scratch.
package release

// Item statuses. "n/a" marks equipment the apparatus does not carry.
const (
	StatusPass = "pass"
	StatusFail = "fail"
	StatusNA   = "n/a"
)

// Decision outcomes.
const (
	DecisionHold    = "hold"
	DecisionRelease = "release"
)

// Item is one line of the vehicle safety checklist. The checklist itself
// is configuration: fixed order, never resized at runtime.
type Item struct {
	Number      int    `json:"itemNumber" yaml:"number"`
	Description string `json:"description" yaml:"description"`
	Status      string `json:"status" yaml:"-"`
	SafetyItem  bool   `json:"isSafetyItem" yaml:"safety"`
	Reference   string `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// Decide returns "hold" iff any safety-critical item failed, otherwise
// "release". Pure function; callers must not cache the result across
// status edits.
func Decide(items []Item) string {
	for _, it := range items {
		if it.SafetyItem && it.Status == StatusFail {
			return DecisionHold
		}
	}
	return DecisionRelease
}
