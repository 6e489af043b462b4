package pgissues

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/firehall/rigcheck/internal/tracker"
)

const issueColumns = `
  i.number, i.title, i.body, i.state, i.author,
  i.created_at, i.updated_at, i.closed_at,
  COALESCE(
    (SELECT array_agg(l.label ORDER BY l.label) FROM issue_labels l WHERE l.issue_number = i.number),
    '{}'
  )`

func scanIssue(row pgx.Row) (*tracker.Issue, error) {
	var is tracker.Issue
	var closedAt *time.Time
	if err := row.Scan(
		&is.Number, &is.Title, &is.Body, &is.State, &is.Author,
		&is.CreatedAt, &is.UpdatedAt, &closedAt,
		&is.Labels,
	); err != nil {
		return nil, err
	}
	is.ClosedAt = closedAt
	return &is, nil
}

func (s *Storage) ListIssues(ctx context.Context, f tracker.ListFilter) ([]tracker.Issue, error) {
	var labels []string
	if len(f.Labels) > 0 {
		labels = f.Labels
	}
	var since *time.Time
	if f.Since != nil {
		t := f.Since.UTC()
		since = &t
	}

	rows, err := s.db.Query(ctx, `
SELECT `+issueColumns+`
FROM issues i
WHERE ($1 = '' OR $1 = 'all' OR i.state = $1)
  AND ($2::timestamptz IS NULL OR i.updated_at >= $2)
  AND ($3::text[] IS NULL OR (
    SELECT count(*) FROM issue_labels l
    WHERE l.issue_number = i.number AND l.label = ANY($3::text[])
  ) = cardinality($3::text[]))
ORDER BY i.number
LIMIT NULLIF($4::int, 0)
`, f.State, since, labels, f.PerPage)
	if err != nil {
		return nil, errors.Wrap(err, "select issues")
	}
	defer rows.Close()

	var out []tracker.Issue
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan issue")
		}
		out = append(out, *is)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) CreateIssue(ctx context.Context, in tracker.NewIssue) (*tracker.Issue, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var number int
	err = tx.QueryRow(ctx, `
INSERT INTO issues (title, body, state, created_at, updated_at)
VALUES ($1, $2, 'open', $3, $3)
RETURNING number
`, in.Title, in.Body, now).Scan(&number)
	if err != nil {
		return nil, errors.Wrap(err, "insert issue")
	}

	for _, label := range in.Labels {
		if _, err := tx.Exec(ctx, `
INSERT INTO issue_labels (issue_number, label) VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, number, label); err != nil {
			return nil, errors.Wrap(err, "insert label")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetIssue(ctx, number)
}

func (s *Storage) AddComment(ctx context.Context, number int, body string) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE issues SET updated_at = $2 WHERE number = $1`, number, now)
	if err != nil {
		return errors.Wrap(err, "touch issue")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("issue #%d not found", number)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO issue_comments (issue_number, body, created_at) VALUES ($1, $2, $3)
`, number, body, now); err != nil {
		return errors.Wrap(err, "insert comment")
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func (s *Storage) PatchIssue(ctx context.Context, number int, p tracker.IssuePatch) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if p.State != nil {
		var closedAt *time.Time
		if *p.State == "closed" {
			closedAt = &now
		}
		tag, err := tx.Exec(ctx, `
UPDATE issues SET state = $2, closed_at = $3, updated_at = $4 WHERE number = $1
`, number, *p.State, closedAt, now)
		if err != nil {
			return errors.Wrap(err, "update state")
		}
		if tag.RowsAffected() == 0 {
			return errors.Errorf("issue #%d not found", number)
		}
	} else {
		tag, err := tx.Exec(ctx, `UPDATE issues SET updated_at = $2 WHERE number = $1`, number, now)
		if err != nil {
			return errors.Wrap(err, "touch issue")
		}
		if tag.RowsAffected() == 0 {
			return errors.Errorf("issue #%d not found", number)
		}
	}

	if p.Labels != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM issue_labels WHERE issue_number = $1`, number); err != nil {
			return errors.Wrap(err, "clear labels")
		}
		for _, label := range *p.Labels {
			if _, err := tx.Exec(ctx, `
INSERT INTO issue_labels (issue_number, label) VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, number, label); err != nil {
				return errors.Wrap(err, "insert label")
			}
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func (s *Storage) GetIssue(ctx context.Context, number int) (*tracker.Issue, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+issueColumns+`
FROM issues i
WHERE i.number = $1
`, number)
	is, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Errorf("issue #%d not found", number)
		}
		return nil, errors.Wrap(err, "select issue")
	}
	return is, nil
}
