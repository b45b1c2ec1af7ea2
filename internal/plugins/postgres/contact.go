package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ghostrecon/internal/core/domain"
)

type ContactRepo struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

func (r *ContactRepo) CreateContact(ctx context.Context, c *domain.Contact) error {
	query := `INSERT INTO contacts (id, user_id, contact_id, contact_alias, trust_level, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, contact_id) DO NOTHING`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		c.ID, c.UserID, c.ContactID, c.ContactAlias, c.TrustLevel, c.Verified, c.CreatedAt)
	if err != nil {
		return err
	}
	return rowsAffected(res, domain.ErrContactExists)
}

func (r *ContactRepo) ContactExists(ctx context.Context, userID, contactID string) (bool, error) {
	var ok bool
	query := `SELECT EXISTS (SELECT 1 FROM contacts WHERE user_id = $1 AND contact_id = $2)`
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, userID, contactID).Scan(&ok)
	return ok, err
}

func (r *ContactRepo) ListContacts(ctx context.Context, userID string) ([]domain.Contact, error) {
	query := `SELECT c.id, c.user_id, c.contact_id, c.contact_alias, c.trust_level, c.verified, c.created_at,
			u.alias, u.is_online, u.last_seen
		FROM contacts c
		LEFT JOIN users u ON u.id = c.contact_id
		WHERE c.user_id = $1
		ORDER BY c.created_at`
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Contact
	for rows.Next() {
		var (
			c        domain.Contact
			alias    sql.NullString
			online   sql.NullBool
			lastSeen sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.ContactID, &c.ContactAlias, &c.TrustLevel, &c.Verified,
			&c.CreatedAt, &alias, &online, &lastSeen); err != nil {
			return nil, err
		}
		if alias.Valid {
			info := &domain.ContactInfo{Alias: alias.String, IsOnline: online.Bool, TrustLevel: c.TrustLevel}
			if lastSeen.Valid {
				t := lastSeen.Time
				info.LastSeen = &t
			}
			c.Info = info
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ContactRepo) UpdateTrust(ctx context.Context, id, userID string, level int) error {
	query := `UPDATE contacts SET trust_level = $3 WHERE id = $1 AND user_id = $2`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, userID, level)
	if err != nil {
		return err
	}
	return rowsAffected(res, domain.ErrContactNotFound)
}

func (r *ContactRepo) DeleteContact(ctx context.Context, id, userID string) error {
	query := `DELETE FROM contacts WHERE id = $1 AND user_id = $2`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, domain.ErrContactNotFound)
}

func (r *ContactRepo) DeleteContactsByUser(ctx context.Context, userID string) (int64, error) {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM contacts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ContactRepo) CountContacts(ctx context.Context, userID string) (int, error) {
	var n int
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT count(*) FROM contacts WHERE user_id = $1`, userID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
