// Package fleet derives fleet-wide views from the tracker: open-defect
// counts per apparatus, per-apparatus defect listings, and the
// trailing-window restock report. Everything here is a stateless read over
// issue titles and labels.
package fleet

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/firehall/rigcheck/internal/defects"
	"github.com/firehall/rigcheck/internal/models"
	"github.com/firehall/rigcheck/internal/tracker"
)

type Config struct {
	Roster []string

	DefectLabel    string
	ResolvedLabel  string
	ListPageSize   int
	WindowDays     int
	MinOccurrences int
}

func (c Config) withDefaults() Config {
	if c.DefectLabel == "" {
		c.DefectLabel = "defect"
	}
	if c.ResolvedLabel == "" {
		c.ResolvedLabel = "resolved"
	}
	if c.ListPageSize <= 0 {
		c.ListPageSize = 100
	}
	if c.WindowDays <= 0 {
		c.WindowDays = 30
	}
	if c.MinOccurrences <= 0 {
		c.MinOccurrences = 2
	}
	return c
}

type Service struct {
	trk tracker.Client
	log zerolog.Logger
	cfg Config
}

func New(trk tracker.Client, log zerolog.Logger, cfg Config) *Service {
	return &Service{trk: trk, log: log, cfg: cfg.withDefaults()}
}

// Status returns the open-defect count for every rostered apparatus. The
// map is zero-filled from the roster first, so an apparatus with a clean
// bill still appears with an explicit zero.
func (s *Service) Status(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(s.cfg.Roster))
	for _, a := range s.cfg.Roster {
		counts[a] = 0
	}

	open, err := s.trk.ListIssues(ctx, tracker.ListFilter{
		State:   "open",
		Labels:  []string{s.cfg.DefectLabel},
		PerPage: s.cfg.ListPageSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list open defects")
	}

	for i := range open {
		d, ok := defects.FromIssue(open[i], s.cfg.ResolvedLabel)
		if !ok || d.Resolved {
			continue
		}
		if _, known := counts[d.Apparatus]; known {
			counts[d.Apparatus]++
		}
	}
	return counts, nil
}

// Defects lists the open defects of one apparatus, oldest first.
func (s *Service) Defects(ctx context.Context, apparatus string) ([]models.Defect, error) {
	open, err := s.trk.ListIssues(ctx, tracker.ListFilter{
		State:   "open",
		Labels:  []string{s.cfg.DefectLabel, apparatus},
		PerPage: s.cfg.ListPageSize,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list open defects for %s", apparatus)
	}

	out := make([]models.Defect, 0, len(open))
	for i := range open {
		d, ok := defects.FromIssue(open[i], s.cfg.ResolvedLabel)
		if !ok || d.Resolved {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

// LowStock reports items that went missing repeatedly across the fleet in
// the trailing window. Damaged items are excluded: damage is a repair
// problem, repeat missing is a supply problem.
func (s *Service) LowStock(ctx context.Context) ([]models.LowStockEntry, error) {
	since := time.Now().UTC().AddDate(0, 0, -s.cfg.WindowDays)
	all, err := s.trk.ListIssues(ctx, tracker.ListFilter{
		State:   "all",
		Labels:  []string{s.cfg.DefectLabel},
		Since:   &since,
		PerPage: s.cfg.ListPageSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list window defects")
	}

	type group struct {
		entry     models.LowStockEntry
		apparatus map[string]struct{}
	}
	groups := map[string]*group{}

	for i := range all {
		dec, ok := defects.DecodeTitle(all[i].Title)
		if !ok || dec.Status != models.DefectStatusMissing {
			continue
		}
		key := dec.Identity.Key()
		g, found := groups[key]
		if !found {
			g = &group{
				entry:     models.LowStockEntry{Item: dec.Identity.Item, Compartment: dec.Identity.Compartment},
				apparatus: map[string]struct{}{},
			}
			groups[key] = g
		}
		g.entry.Occurrences++
		g.apparatus[dec.Identity.Apparatus] = struct{}{}
	}

	var out []models.LowStockEntry
	for _, g := range groups {
		if g.entry.Occurrences < s.cfg.MinOccurrences {
			continue
		}
		for a := range g.apparatus {
			g.entry.Apparatus = append(g.entry.Apparatus, a)
		}
		sort.Strings(g.entry.Apparatus)
		out = append(out, g.entry)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		if out[i].Compartment != out[j].Compartment {
			return out[i].Compartment < out[j].Compartment
		}
		return out[i].Item < out[j].Item
	})
	return out, nil
}
