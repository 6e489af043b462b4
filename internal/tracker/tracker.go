// Package tracker defines the issue-tracker interface rigcheck persists
// through. The tracker is the system of record: defects and inspection logs
// are issues, and everything else in the service is a stateless
// transformation over what these five verbs return.
package tracker

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrUnauthorized is returned when the backend rejects the caller's
// credential (401-equivalent). Callers use errors.Is to tell it apart from
// generic failures so the UI can re-prompt instead of showing a dead end.
var ErrUnauthorized = errors.New("tracker: unauthorized")

// Issue is a tracker entry. Defects and inspection log entries are both
// issues, distinguished by labels.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"` // "open" or "closed"
	Labels    []string   `json:"labels"`
	Author    string     `json:"author,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// HasLabel reports whether the issue carries the given label.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// ListFilter scopes a ListIssues query. Labels are ANDed.
type ListFilter struct {
	State   string
	Labels  []string
	Since   *time.Time
	PerPage int
}

// NewIssue is the creation payload.
type NewIssue struct {
	Title  string
	Body   string
	Labels []string
}

// IssuePatch carries partial updates. Nil fields are left untouched.
type IssuePatch struct {
	State  *string
	Labels *[]string
}

// Client is the four-verb (plus point read) tracker interface. All
// implementations must map backend auth failures to ErrUnauthorized.
type Client interface {
	ListIssues(ctx context.Context, f ListFilter) ([]Issue, error)
	CreateIssue(ctx context.Context, in NewIssue) (*Issue, error)
	AddComment(ctx context.Context, number int, body string) error
	PatchIssue(ctx context.Context, number int, p IssuePatch) error
	GetIssue(ctx context.Context, number int) (*Issue, error)
}

type credentialKey struct{}

// WithCredential attaches an opaque admin credential to the context.
// Backends forward it verbatim; rigcheck never inspects it.
func WithCredential(ctx context.Context, cred string) context.Context {
	if cred == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialKey{}, cred)
}

// Credential returns the context credential, if any.
func Credential(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(credentialKey{}).(string)
	return v, ok && v != ""
}
