// Package inspections implements the defect reconciliation flow: a
// submitted checklist either verifies existing open issues or opens fresh
// ones, and a fully-durable submission leaves one closed audit log entry
// behind.
package inspections

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/firehall/rigcheck/internal/broker/messages"
	"github.com/firehall/rigcheck/internal/defects"
	"github.com/firehall/rigcheck/internal/models"
	"github.com/firehall/rigcheck/internal/tracker"
)

// ErrSubmitInProgress is returned when another submission currently holds
// the apparatus lock. Safe to retry: reconciliation dedupes on open issues.
var ErrSubmitInProgress = errors.New("inspection submission already in progress for this apparatus")

// ErrLogEntry marks failures of the audit log step. The defects themselves
// are already durable when this surfaces, so it is a lesser-severity error.
var ErrLogEntry = errors.New("inspection log entry failed")

// SubmitError aggregates the per-item failures of one submission. The
// batch is never aborted mid-way; every item gets its attempt and every
// failure is named.
type SubmitError struct {
	Failed []string
}

func (e *SubmitError) Error() string {
	return "failed to record defects: " + strings.Join(e.Failed, "; ")
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, event any) error
}

type Locker interface {
	Acquire(ctx context.Context, apparatus string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, apparatus string) error
}

type Config struct {
	Roster []string

	DefectLabel   string
	LogLabel      string
	ResolvedLabel string
	DamagedLabel  string

	ListPageSize  int
	Concurrency   int
	SubmitLockTTL time.Duration

	CompletedTopic string
	ResolvedTopic  string
}

func (c Config) withDefaults() Config {
	if c.DefectLabel == "" {
		c.DefectLabel = "defect"
	}
	if c.LogLabel == "" {
		c.LogLabel = "inspection-log"
	}
	if c.ResolvedLabel == "" {
		c.ResolvedLabel = "resolved"
	}
	if c.DamagedLabel == "" {
		c.DamagedLabel = "damaged"
	}
	if c.ListPageSize <= 0 {
		c.ListPageSize = 100
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.SubmitLockTTL <= 0 {
		c.SubmitLockTTL = 2 * time.Minute
	}
	if c.CompletedTopic == "" {
		c.CompletedTopic = "inspection.completed"
	}
	if c.ResolvedTopic == "" {
		c.ResolvedTopic = "defect.resolved"
	}
	return c
}

type Service struct {
	trk      tracker.Client
	producer Producer
	locker   Locker
	log      zerolog.Logger
	cfg      Config
}

func New(trk tracker.Client, producer Producer, locker Locker, log zerolog.Logger, cfg Config) *Service {
	return &Service{trk: trk, producer: producer, locker: locker, log: log, cfg: cfg.withDefaults()}
}

func (s *Service) knownApparatus(name string) bool {
	for _, a := range s.cfg.Roster {
		if a == name {
			return true
		}
	}
	return false
}

func (s *Service) validate(sub *models.InspectionSubmission) error {
	if !s.knownApparatus(sub.Apparatus) {
		return errors.Errorf("unknown apparatus %q", sub.Apparatus)
	}
	if sub.User.Name == "" {
		return errors.New("inspector name is required")
	}
	for _, d := range sub.Defects {
		if !defects.ValidField(d.Compartment) || !defects.ValidField(d.Item) {
			return errors.Errorf("compartment/item %q/%q contains title delimiter characters", d.Compartment, d.Item)
		}
		if d.Status != models.DefectStatusMissing && d.Status != models.DefectStatusDamaged {
			return errors.Errorf("unknown defect status %q", d.Status)
		}
	}
	return nil
}

// SubmitInspection reconciles one submission against the tracker. Each
// reported defect either becomes a verification comment on the matching
// open issue or a freshly created issue. Per-item failures never abort the
// batch; the audit log entry is created only when every item succeeded.
func (s *Service) SubmitInspection(ctx context.Context, sub *models.InspectionSubmission) error {
	if err := s.validate(sub); err != nil {
		return err
	}
	if sub.Date.IsZero() {
		sub.Date = time.Now().UTC()
	}

	if s.locker != nil {
		ok, err := s.locker.Acquire(ctx, sub.Apparatus, s.cfg.SubmitLockTTL)
		if err != nil {
			// A broken lock backend must not block inspections; the residual
			// duplicate-creation race is the lesser evil.
			s.log.Warn().Err(err).Str("apparatus", sub.Apparatus).Msg("submit lock unavailable, continuing without it")
		} else if !ok {
			return ErrSubmitInProgress
		} else {
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), sub.Apparatus); err != nil {
					s.log.Warn().Err(err).Str("apparatus", sub.Apparatus).Msg("submit lock release failed")
				}
			}()
		}
	}

	idx := s.buildIndex(ctx, sub.Apparatus)

	failed := s.reconcile(ctx, sub, idx)
	if len(failed) > 0 {
		sort.Strings(failed)
		return &SubmitError{Failed: failed}
	}

	logIssue, err := s.createLogEntry(ctx, sub)
	if err != nil {
		return err
	}

	evt := messages.InspectionCompleted{
		Apparatus:     sub.Apparatus,
		Inspector:     sub.User.Name,
		InspectorRank: sub.User.Rank,
		Date:          sub.Date,
		ItemsChecked:  len(sub.Items),
		DefectsFound:  len(sub.Defects),
		LogIssue:      logIssue,
	}
	if s.producer != nil {
		if err := s.producer.PublishJSON(ctx, s.cfg.CompletedTopic, sub.Apparatus, evt); err != nil {
			s.log.Warn().Err(err).Str("apparatus", sub.Apparatus).Msg("inspection.completed publish failed")
		}
	}
	return nil
}

// buildIndex snapshots the open defects of one apparatus. Built once per
// submission; a failed query degrades to an empty index (risking a
// duplicate issue) rather than blocking the whole submission.
func (s *Service) buildIndex(ctx context.Context, apparatus string) map[string]defects.IssueRef {
	open, err := s.trk.ListIssues(ctx, tracker.ListFilter{
		State:   "open",
		Labels:  []string{s.cfg.DefectLabel, apparatus},
		PerPage: s.cfg.ListPageSize,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("apparatus", apparatus).Msg("defect index query failed, proceeding with empty index")
		return map[string]defects.IssueRef{}
	}
	return defects.BuildIndex(open)
}

// reconcile runs the per-item create-or-comment fan-out with bounded
// concurrency and returns the labels of failed items. All in-flight
// operations settle before it returns; one item's failure never cancels a
// sibling's request.
func (s *Service) reconcile(ctx context.Context, sub *models.InspectionSubmission, idx map[string]defects.IssueRef) []string {
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []string

	for _, d := range sub.Defects {
		sem <- struct{}{}
		wg.Add(1)
		dCopy := d
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			if err := s.reconcileOne(ctx, sub, dCopy, idx); err != nil {
				id := models.Identity{Apparatus: sub.Apparatus, Compartment: dCopy.Compartment, Item: dCopy.Item}
				s.log.Error().Err(err).Str("defect", id.Label()).Msg("defect reconciliation failed")
				mu.Lock()
				failed = append(failed, id.Label())
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return failed
}

func (s *Service) reconcileOne(ctx context.Context, sub *models.InspectionSubmission, d models.ReportedDefect, idx map[string]defects.IssueRef) error {
	id := models.Identity{Apparatus: sub.Apparatus, Compartment: d.Compartment, Item: d.Item}

	if ref, ok := idx[id.Key()]; ok {
		return s.trk.AddComment(ctx, ref.Number, verificationComment(sub, d))
	}

	labels := []string{s.cfg.DefectLabel, sub.Apparatus}
	if d.Status == models.DefectStatusDamaged {
		labels = append(labels, s.cfg.DamagedLabel)
	}
	_, err := s.trk.CreateIssue(ctx, tracker.NewIssue{
		Title:  defects.EncodeTitle(id, d.Status),
		Body:   defectBody(sub, d),
		Labels: labels,
	})
	return err
}

// createLogEntry writes the closed audit issue for a fully-successful
// submission. It carries the log label, never the defect label, so fleet
// aggregation does not count it.
func (s *Service) createLogEntry(ctx context.Context, sub *models.InspectionSubmission) (int, error) {
	is, err := s.trk.CreateIssue(ctx, tracker.NewIssue{
		Title:  defects.LogTitle(sub.Apparatus, sub.Date.Format("2006-01-02")),
		Body:   logBody(sub),
		Labels: []string{s.cfg.LogLabel, sub.Apparatus},
	})
	if err != nil {
		return 0, errors.Wrap(ErrLogEntry, err.Error())
	}

	closed := "closed"
	if err := s.trk.PatchIssue(ctx, is.Number, tracker.IssuePatch{State: &closed}); err != nil {
		return 0, errors.Wrap(ErrLogEntry, err.Error())
	}
	return is.Number, nil
}

// ResolveDefect closes an open defect on behalf of an admin. The issue is
// fetched first to preserve its apparatus label, which the caller does not
// know. Backend auth failures surface as tracker.ErrUnauthorized.
func (s *Service) ResolveDefect(ctx context.Context, issueNumber int, note, resolvedBy string) error {
	is, err := s.trk.GetIssue(ctx, issueNumber)
	if err != nil {
		if errors.Is(err, tracker.ErrUnauthorized) {
			return err
		}
		return errors.Wrapf(err, "fetch defect #%d", issueNumber)
	}

	apparatus := ""
	for _, l := range is.Labels {
		if s.knownApparatus(l) {
			apparatus = l
			break
		}
	}

	if err := s.trk.AddComment(ctx, issueNumber, resolutionComment(note, resolvedBy)); err != nil {
		if errors.Is(err, tracker.ErrUnauthorized) {
			return err
		}
		return errors.Wrapf(err, "comment on defect #%d", issueNumber)
	}

	closed := "closed"
	labels := []string{s.cfg.DefectLabel, s.cfg.ResolvedLabel}
	if apparatus != "" {
		labels = append(labels, apparatus)
	}
	if err := s.trk.PatchIssue(ctx, issueNumber, tracker.IssuePatch{State: &closed, Labels: &labels}); err != nil {
		if errors.Is(err, tracker.ErrUnauthorized) {
			return err
		}
		return errors.Wrapf(err, "close defect #%d", issueNumber)
	}

	if s.producer != nil {
		evt := messages.DefectResolved{
			IssueNumber: issueNumber,
			Apparatus:   apparatus,
			ResolvedBy:  resolvedBy,
			ResolvedAt:  time.Now().UTC(),
			Note:        note,
		}
		if err := s.producer.PublishJSON(ctx, s.cfg.ResolvedTopic, apparatus, evt); err != nil {
			s.log.Warn().Err(err).Int("issue", issueNumber).Msg("defect.resolved publish failed")
		}
	}
	return nil
}
