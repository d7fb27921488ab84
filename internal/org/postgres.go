package org

import (
	"context"
	"database/sql"
	"time"

	"peterboroughtenants.org/internal/member"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Loaded units carry the
// shared evaluator for their guards.
type PGStore struct {
	db   *sql.DB
	eval *member.Evaluator
}

func NewPGStore(db *sql.DB, eval *member.Evaluator) *PGStore {
	if eval == nil {
		eval = member.NewEvaluator()
	}
	return &PGStore{db: db, eval: eval}
}

const branchColumns = `id, name, coalesce(area,''),
	coalesce(founded, '0001-01-01'::date), coalesce(dissolved, '0001-01-01'::date), created_on`

func (s *PGStore) FindBranch(ctx context.Context, id string) (*Branch, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+branchColumns+` from branches where id=$1`, id)
	return s.scanBranch(row)
}

func (s *PGStore) ListBranches(ctx context.Context) ([]*Branch, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+branchColumns+` from branches order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []*Branch
	for rows.Next() {
		b, err := s.scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (s *PGStore) FindCommittee(ctx context.Context, id string) (*Committee, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, coalesce(purpose,''), coalesce(branch_id,''), created_on
		 from committees where id=$1`, id)
	return s.scanCommittee(row)
}

func (s *PGStore) ListCommittees(ctx context.Context, branchID string) ([]*Committee, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, coalesce(purpose,''), coalesce(branch_id,''), created_on
		 from committees where ($1='' or branch_id=$1) order by name`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var committees []*Committee
	for rows.Next() {
		c, err := s.scanCommittee(rows)
		if err != nil {
			return nil, err
		}
		committees = append(committees, c)
	}
	return committees, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PGStore) scanBranch(row rowScanner) (*Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.Name, &b.Area, &b.Founded, &b.Dissolved, &b.CreatedOn)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.Founded.Year() == 1 {
		b.Founded = time.Time{}
	}
	if b.Dissolved.Year() == 1 {
		b.Dissolved = time.Time{}
	}
	b.eval = s.eval
	return &b, nil
}

func (s *PGStore) scanCommittee(row rowScanner) (*Committee, error) {
	var c Committee
	err := row.Scan(&c.ID, &c.Name, &c.Purpose, &c.BranchID, &c.CreatedOn)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.eval = s.eval
	return &c, nil
}
