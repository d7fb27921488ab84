package session

import (
	"context"
	"database/sql"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, user_agent_hash, remote_addr, source, created, last_used, trusted, contact_id)
		 values($1,$2,$3,$4,$5,$6,$7,nullif($8,''))`,
		sess.ID, sess.UserAgentHash, sess.RemoteAddr, sess.Source,
		sess.Created, sess.LastUsed, sess.Trusted, sess.ContactID,
	)
	return err
}

func (s *PGStore) FindSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_agent_hash, remote_addr, source, created, last_used, trusted, coalesce(contact_id,'')
		 from sessions where id=$1`, id)
	return scanSession(row)
}

func (s *PGStore) TouchSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set last_used=now() where id=$1`, id)
	return err
}

func (s *PGStore) EntrustSession(ctx context.Context, id, contactID string) error {
	res, err := s.db.ExecContext(ctx,
		`update sessions set trusted=true, contact_id=$2, last_used=now() where id=$1`,
		id, contactID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where id=$1`, id)
	return err
}

func (s *PGStore) DeleteSessionsForContact(ctx context.Context, contactID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from sessions where contact_id=$1`, contactID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGStore) LatestMatchingSession(ctx context.Context, contactID, uaHash, source, remoteAddr string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_agent_hash, remote_addr, source, created, last_used, trusted, coalesce(contact_id,'')
		 from sessions
		 where contact_id=$1 and user_agent_hash=$2 and source=$3 and remote_addr=$4
		 order by last_used desc limit 1`,
		contactID, uaHash, source, remoteAddr)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserAgentHash, &sess.RemoteAddr, &sess.Source,
		&sess.Created, &sess.LastUsed, &sess.Trusted, &sess.ContactID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PGStore) CreateRequest(ctx context.Context, r *Request) error {
	_, err := s.db.ExecContext(ctx,
		`insert into requests(id, session_id, started, host, path, method, trusted, contact_id)
		 values($1,nullif($2,''),$3,$4,$5,$6,$7,nullif($8,''))`,
		r.ID, r.SessionID, r.Started, r.Host, r.Path, r.Method, r.Trusted, r.ContactID,
	)
	return err
}

func (s *PGStore) FinishRequest(ctx context.Context, r *Request) error {
	_, err := s.db.ExecContext(ctx,
		`update requests set finished=$2, duration=$3, response_code=$4, contact_id=nullif($5,'') where id=$1`,
		r.ID, r.Finished, r.Duration, r.ResponseCode, r.ContactID,
	)
	return err
}

func (s *PGStore) SetReturnHash(ctx context.Context, requestID, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`update requests set return_hash=$2 where id=$1`, requestID, hash)
	return err
}

func (s *PGStore) RecentReturnHashes(ctx context.Context, sessionID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultLookback
	}
	rows, err := s.db.QueryContext(ctx,
		`select return_hash from requests
		 where session_id=$1 and return_hash is not null
		 order by started desc limit $2`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}
