package pgissues

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS issues (
  number BIGSERIAL PRIMARY KEY,
  title TEXT NOT NULL,
  body TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT 'open',
  author TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  closed_at TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_state_updated_at ON issues(state, updated_at)`,
		// One open issue per encoded defect title. Closed issues may repeat
		// the title: a recurrence after resolution opens a fresh issue.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_issues_open_title ON issues(title) WHERE state = 'open'`,
		`
CREATE TABLE IF NOT EXISTS issue_labels (
  issue_number BIGINT NOT NULL REFERENCES issues(number) ON DELETE CASCADE,
  label TEXT NOT NULL,
  PRIMARY KEY (issue_number, label)
)`,
		`CREATE INDEX IF NOT EXISTS idx_issue_labels_label ON issue_labels(label)`,
		`
CREATE TABLE IF NOT EXISTS issue_comments (
  id BIGSERIAL PRIMARY KEY,
  issue_number BIGINT NOT NULL REFERENCES issues(number) ON DELETE CASCADE,
  body TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_issue_comments_issue_number ON issue_comments(issue_number, id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
