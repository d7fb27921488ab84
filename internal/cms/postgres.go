package cms

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"peterboroughtenants.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const pageColumns = `id, slug, title, coalesce(description,''), coalesce(body,''),
	coalesce(category,''), archived, coalesce(publish_on, 'epoch'::timestamptz),
	created_on, coalesce(updated_on, created_on)`

func (s *PGStore) FindBySlug(ctx context.Context, slug string) (*Page, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+pageColumns+` from pages where slug=$1`, slug)
	return scanPage(row)
}

func (s *PGStore) List(ctx context.Context, category string, publishedOnly bool) ([]*Page, error) {
	q := `select ` + pageColumns + ` from pages where ($1='' or category=$1)`
	if publishedOnly {
		q += ` and not archived and publish_on is not null and publish_on <= now()`
	}
	q += ` order by publish_on desc nulls last, title`

	rows, err := s.db.QueryContext(ctx, q, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *PGStore) Create(ctx context.Context, p *Page) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into pages(id, slug, title, description, body, category, archived, publish_on)
		 values($1,$2,$3,nullif($4,''),nullif($5,''),nullif($6,''),$7,nullif($8,'epoch'::timestamptz))`,
		p.ID, p.Slug, p.Title, p.Description, p.Body, p.Category, p.Archived, p.PublishOn)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrDuplicate
	}
	return err
}

func (s *PGStore) Update(ctx context.Context, p *Page) error {
	res, err := s.db.ExecContext(ctx,
		`update pages set title=$2, description=nullif($3,''), body=nullif($4,''),
			category=nullif($5,''), archived=$6,
			publish_on=nullif($7,'epoch'::timestamptz), updated_on=now()
		 where slug=$1`,
		p.Slug, p.Title, p.Description, p.Body, p.Category, p.Archived, p.PublishOn)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*Page, error) {
	var p Page
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Body,
		&p.Category, &p.Archived, &p.PublishOn, &p.CreatedOn, &p.UpdatedOn)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.PublishOn.Unix() == 0 {
		p.PublishOn = time.Time{}
	}
	return &p, nil
}
