package notify

import (
	"context"
	"database/sql"
	"encoding/json"

	"peterboroughtenants.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore keeps the outbox in PostgreSQL so queued mail survives restarts.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Enqueue(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = ids.New()
	}
	data, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into email_outbox(id, recipient, subject, template, data, status, queued_on)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.To, m.Subject, m.Template, data, StatusQueued, m.QueuedOn)
	return err
}

func (s *PGStore) Pending(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, recipient, subject, template, data, status, attempts, coalesce(last_error,'')
		 from email_outbox
		 where status in ($1,$2,$3)
		 order by queued_on limit $4`,
		StatusQueued, StatusRendering, StatusSending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			m    Message
			data []byte
		)
		if err := rows.Scan(&m.ID, &m.To, &m.Subject, &m.Template, &data,
			&m.Status, &m.Attempts, &m.LastError); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &m.Data); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (s *PGStore) MarkStatus(ctx context.Context, id, status, lastError string) error {
	res, err := s.db.ExecContext(ctx,
		`update email_outbox
		 set status=$2, last_error=nullif($3,''),
		     attempts=attempts + case when $3<>'' then 1 else 0 end
		 where id=$1`,
		id, status, lastError)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) MarkDelivered(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update email_outbox set status=$2, sent_on=now() where id=$1`,
		id, StatusDelivered)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
