// Package fake is an in-memory tracker. It backs unit tests and serves as
// the default backend when no real tracker is configured, so the service
// can be run end to end on a laptop.
package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/firehall/rigcheck/internal/tracker"
	"github.com/pkg/errors"
)

type Tracker struct {
	mu     sync.Mutex
	next   int
	issues map[int]*tracker.Issue

	// Comments keyed by issue number, in append order.
	comments map[int][]string

	// AdminCred, when set, is required (via the context credential) for
	// PatchIssue calls, imitating an admin-gated backend.
	AdminCred string

	// Fail hooks let tests force per-call failures.
	FailCreateTitle  map[string]error
	FailCommentIssue map[int]error
	FailList         error
	FailPatchIssue   map[int]error
}

func New() *Tracker {
	return &Tracker{
		next:     1,
		issues:   map[int]*tracker.Issue{},
		comments: map[int][]string{},
	}
}

func (f *Tracker) ListIssues(_ context.Context, filter tracker.ListFilter) ([]tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailList != nil {
		return nil, f.FailList
	}

	numbers := make([]int, 0, len(f.issues))
	for n := range f.issues {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	out := make([]tracker.Issue, 0, len(numbers))
	for _, n := range numbers {
		is := f.issues[n]
		if filter.State != "" && filter.State != "all" && is.State != filter.State {
			continue
		}
		if filter.Since != nil && is.UpdatedAt.Before(*filter.Since) {
			continue
		}
		match := true
		for _, l := range filter.Labels {
			if !is.HasLabel(l) {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		out = append(out, *is)
		if filter.PerPage > 0 && len(out) >= filter.PerPage {
			break
		}
	}
	return out, nil
}

func (f *Tracker) CreateIssue(_ context.Context, in tracker.NewIssue) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailCreateTitle[in.Title]; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	is := &tracker.Issue{
		Number:    f.next,
		Title:     in.Title,
		Body:      in.Body,
		State:     "open",
		Labels:    append([]string(nil), in.Labels...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.next++
	f.issues[is.Number] = is
	out := *is
	return &out, nil
}

func (f *Tracker) AddComment(_ context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailCommentIssue[number]; err != nil {
		return err
	}
	is, ok := f.issues[number]
	if !ok {
		return errors.Errorf("fake: issue #%d not found", number)
	}
	f.comments[number] = append(f.comments[number], body)
	is.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *Tracker) PatchIssue(ctx context.Context, number int, p tracker.IssuePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailPatchIssue[number]; err != nil {
		return err
	}
	if f.AdminCred != "" {
		cred, ok := tracker.Credential(ctx)
		if !ok || cred != f.AdminCred {
			return tracker.ErrUnauthorized
		}
	}
	is, ok := f.issues[number]
	if !ok {
		return errors.Errorf("fake: issue #%d not found", number)
	}
	now := time.Now().UTC()
	if p.State != nil {
		is.State = *p.State
		if *p.State == "closed" {
			is.ClosedAt = &now
		} else {
			is.ClosedAt = nil
		}
	}
	if p.Labels != nil {
		is.Labels = append([]string(nil), (*p.Labels)...)
	}
	is.UpdatedAt = now
	return nil
}

func (f *Tracker) GetIssue(_ context.Context, number int) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	is, ok := f.issues[number]
	if !ok {
		return nil, errors.Errorf("fake: issue #%d not found", number)
	}
	out := *is
	return &out, nil
}

// Comments returns the recorded comments for an issue (test helper).
func (f *Tracker) Comments(number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.comments[number]...)
}

// Seed inserts an issue verbatim (test helper).
func (f *Tracker) Seed(is tracker.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if is.Number >= f.next {
		f.next = is.Number + 1
	}
	cp := is
	f.issues[is.Number] = &cp
}
