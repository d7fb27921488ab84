package directory

import (
	"context"
	"database/sql"
	"strings"

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

const contactColumns = `id, given_name, family_name, other_names, pronouns,
	coalesce(date_of_birth, '0001-01-01'::date),
	coalesce(membership_number,''), coalesce(membership_type,''),
	coalesce(joined_on, '0001-01-01'::date),
	coalesce(preferred_email,''), account_blocked, coalesce(password_hash,''),
	created_on, coalesce(updated_on, created_on)`

func (s *PGStore) Find(ctx context.Context, id string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+contactColumns+` from contacts where id=$1`, id)
	c, err := scanContact(row)
	if err != nil {
		return nil, err
	}
	emails, err := s.EmailsFor(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Emails = emails
	return c, nil
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+contactColumns+` from contacts where upper(preferred_email)=upper($1)`, email)
	return scanContact(row)
}

func (s *PGStore) List(ctx context.Context, limit int) ([]*Contact, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+contactColumns+` from contacts order by family_name, given_name limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *PGStore) Create(ctx context.Context, c *Contact) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into contacts(id, given_name, family_name, other_names, pronouns,
			date_of_birth, membership_number, membership_type, joined_on,
			preferred_email, account_blocked, password_hash)
		 values($1,$2,$3,$4,$5,nullif($6,'0001-01-01'::date),nullif($7,''),nullif($8,''),
			nullif($9,'0001-01-01'::date),nullif($10,''),$11,nullif($12,''))`,
		c.ID, c.GivenName, c.FamilyName, c.OtherNames, c.Pronouns,
		c.DateOfBirth.Format("2006-01-02"), c.MembershipNumber, c.MembershipType,
		c.JoinedOn.Format("2006-01-02"), c.PreferredEmail, c.Blocked, c.PasswordHash,
	)
	return err
}

func (s *PGStore) UpdatePassword(ctx context.Context, contactID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update contacts set password_hash=$2, updated_on=now() where id=$1`,
		contactID, passwordHash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) EmailsFor(ctx context.Context, contactID string) ([]*EmailAddress, error) {
	rows, err := s.db.QueryContext(ctx,
		`select address, contact_id, verified, blocked from contact_emails where contact_id=$1 order by address`,
		contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []*EmailAddress
	for rows.Next() {
		var e EmailAddress
		if err := rows.Scan(&e.Address, &e.ContactID, &e.Verified, &e.Blocked); err != nil {
			return nil, err
		}
		emails = append(emails, &e)
	}
	return emails, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.GivenName, &c.FamilyName, &c.OtherNames, &c.Pronouns,
		&c.DateOfBirth, &c.MembershipNumber, &c.MembershipType, &c.JoinedOn,
		&c.PreferredEmail, &c.Blocked, &c.PasswordHash, &c.CreatedOn, &c.UpdatedOn)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.GivenName = strings.TrimSpace(c.GivenName)
	c.FamilyName = strings.TrimSpace(c.FamilyName)
	return &c, nil
}
