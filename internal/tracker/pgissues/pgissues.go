// Package pgissues implements the tracker interface on Postgres. It exists
// so the reconciliation logic can run against a real database instead of a
// hosted tracker without changing anything above the five verbs.
package pgissues

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/firehall/rigcheck/internal/tracker"
)

type Storage struct {
	db *pgxpool.Pool

	// adminToken gates PatchIssue when non-empty; the caller's context
	// credential must match. Imitates the 401 behavior of hosted trackers.
	adminToken string
}

func New(connString, adminToken string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &Storage{db: db, adminToken: adminToken}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Storage) authorize(ctx context.Context) error {
	if s.adminToken == "" {
		return nil
	}
	cred, ok := tracker.Credential(ctx)
	if !ok || cred != s.adminToken {
		return tracker.ErrUnauthorized
	}
	return nil
}
