package member

import (
	"context"
	"database/sql"
	"fmt"
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

func (s *PGStore) Find(ctx context.Context, contactID string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, account_blocked from contacts where id=$1`, contactID)
	var p Principal
	if err := row.Scan(&p.ID, &p.Blocked); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	grants, err := s.GrantsFor(ctx, contactID)
	if err != nil {
		return nil, err
	}
	p.Grants = grants
	return &p, nil
}

func (s *PGStore) GrantsFor(ctx context.Context, contactID string) ([]Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, contact_id, role, unit_type, unit_id, held_since, ends_on
		 from role_grants where contact_id=$1 order by held_since`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var (
			g        Grant
			unitType sql.NullString
			unitID   sql.NullString
			endsOn   sql.NullTime
		)
		if err := rows.Scan(&g.ID, &g.ContactID, &g.Role, &unitType, &unitID, &g.HeldSince, &endsOn); err != nil {
			return nil, err
		}
		if unitType.Valid && unitID.Valid {
			g.Unit = &Unit{Type: UnitType(unitType.String), ID: unitID.String}
		}
		if endsOn.Valid {
			g.EndsOn = endsOn.Time
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *PGStore) CreateGrant(ctx context.Context, grant *Grant) error {
	if grant.ContactID == "" || grant.Role == "" {
		return fmt.Errorf("%w: contact_id and role are required", ErrInvalidInput)
	}
	if !grant.EndsOn.IsZero() && !grant.EndsOn.After(grant.HeldSince) {
		return fmt.Errorf("%w: ends_on must be after held_since", ErrInvalidInput)
	}
	if grant.ID == "" {
		grant.ID = ids.New()
	}
	var unitType, unitID any
	if grant.Unit != nil {
		unitType = string(grant.Unit.Type)
		unitID = grant.Unit.ID
	}
	var endsOn any
	if !grant.EndsOn.IsZero() {
		endsOn = grant.EndsOn
	}
	_, err := s.db.ExecContext(ctx,
		`insert into role_grants(id, contact_id, role, unit_type, unit_id, held_since, ends_on)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		grant.ID, grant.ContactID, string(grant.Role), unitType, unitID, grant.HeldSince, endsOn,
	)
	return err
}

func (s *PGStore) EndGrant(ctx context.Context, grantID string, on time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update role_grants set ends_on=$2 where id=$1`, grantID, on)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
