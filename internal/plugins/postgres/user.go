package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ghostrecon/internal/core/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, alias, registration_type, device_fingerprint, email, phone, password_hash,
	trust_level, encryption_key_hash, public_key, push_token, is_online, last_seen,
	security_settings, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                         domain.User
		fingerprint, email, phone sql.NullString
		lastSeen                  sql.NullTime
		settings                  []byte
		regType                   string
	)
	err := row.Scan(&u.ID, &u.Alias, &regType, &fingerprint, &email, &phone, &u.PasswordHash,
		&u.TrustLevel, &u.EncryptionKeyHash, &u.PublicKey, &u.PushToken, &u.IsOnline, &lastSeen,
		&settings, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.RegistrationType = domain.RegistrationType(regType)
	u.DeviceFingerprint = fingerprint.String
	u.Email = email.String
	u.Phone = phone.String
	if lastSeen.Valid {
		t := lastSeen.Time
		u.LastSeen = &t
	}
	u.Settings = domain.DefaultSecuritySettings()
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &u.Settings); err != nil {
			return nil, fmt.Errorf("decode security settings: %w", err)
		}
	}
	return &u, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		return domain.ErrInvalidUserID
	}
	settings, err := json.Marshal(u.Settings)
	if err != nil {
		return err
	}
	query := `INSERT INTO users (id, alias, registration_type, device_fingerprint, email, phone,
		password_hash, trust_level, encryption_key_hash, public_key, security_settings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	exec := GetExecutor(ctx, r.db)
	_, err = exec.ExecContext(ctx, query, u.ID, u.Alias, string(u.RegistrationType),
		nullIfEmpty(u.DeviceFingerprint), nullIfEmpty(u.Email), nullIfEmpty(u.Phone),
		u.PasswordHash, u.TrustLevel, u.EncryptionKeyHash, u.PublicKey, settings, u.CreatedAt)
	return err
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`
	exec := GetExecutor(ctx, r.db)
	u, err := scanUser(exec.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return u, err
}

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrInvalidUserID
	}
	return r.getOne(ctx, `id = $1`, id)
}

func (r *UserRepo) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.User, error) {
	return r.getOne(ctx, `device_fingerprint = $1`, fingerprint)
}

func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return r.getOne(ctx, `(email = $1 OR phone = $1 OR device_fingerprint = $1)`, identifier)
}

func (r *UserRepo) exists(ctx context.Context, column, value string) (bool, error) {
	var ok bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE ` + column + ` = $1)`
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, value).Scan(&ok)
	return ok, err
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *UserRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, "phone", phone)
}

// SearchByAlias matches a case-insensitive substring of the alias.
func (r *UserRepo) SearchByAlias(ctx context.Context, q, excludeID string, limit int) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE alias ILIKE '%' || $1 || '%' AND id <> $2
		ORDER BY alias LIMIT $3`
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, escapeLike(q), excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepo) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	query := `UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, online, at)
	if err != nil {
		return err
	}
	return rowsAffected(res, domain.ErrUserNotFound)
}

func (r *UserRepo) UpdateSecuritySettings(ctx context.Context, id string, s domain.SecuritySettings) error {
	settings, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.update(ctx, id, "security_settings", settings)
}

func (r *UserRepo) UpdateEncryptionKeyHash(ctx context.Context, id, hash string) error {
	return r.update(ctx, id, "encryption_key_hash", hash)
}

func (r *UserRepo) UpdatePublicKey(ctx context.Context, id, key string) error {
	return r.update(ctx, id, "public_key", key)
}

func (r *UserRepo) UpdatePushToken(ctx context.Context, id, token string) error {
	return r.update(ctx, id, "push_token", token)
}

// update sets a single column; column names are compile-time constants.
func (r *UserRepo) update(ctx context.Context, id, column string, value any) error {
	query := `UPDATE users SET ` + column + ` = $2 WHERE id = $1`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, value)
	if err != nil {
		return err
	}
	return rowsAffected(res, domain.ErrUserNotFound)
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
