package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ghostrecon/internal/core/domain"
)

type CallRepo struct {
	db *sql.DB
}

func NewCallRepository(db *sql.DB) *CallRepo {
	return &CallRepo{db: db}
}

const callColumns = `id, caller_id, caller_alias, receiver_id, receiver_alias, call_type, status,
	encryption, started_at, ended_at, duration_seconds`

func scanCall(row rowScanner) (*domain.Call, error) {
	var (
		c                domain.Call
		callType, status string
		endedAt          sql.NullTime
		duration         sql.NullInt32
	)
	if err := row.Scan(&c.ID, &c.CallerID, &c.CallerAlias, &c.ReceiverID, &c.ReceiverAlias, &callType,
		&status, &c.Encryption, &c.StartedAt, &endedAt, &duration); err != nil {
		return nil, err
	}
	c.CallType = domain.CallType(callType)
	c.Status = domain.CallStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	if duration.Valid {
		d := int(duration.Int32)
		c.DurationSeconds = &d
	}
	return &c, nil
}

func (r *CallRepo) CreateCall(ctx context.Context, c *domain.Call) error {
	query := `INSERT INTO calls (` + callColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		c.ID, c.CallerID, c.CallerAlias, c.ReceiverID, c.ReceiverAlias, string(c.CallType),
		string(c.Status), c.Encryption, c.StartedAt, c.EndedAt, c.DurationSeconds)
	return err
}

func (r *CallRepo) GetCallByID(ctx context.Context, id string) (*domain.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCallNotFound
	}
	return c, err
}

func (r *CallRepo) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls
		WHERE caller_id = $1 OR receiver_id = $1
		ORDER BY started_at DESC
		LIMIT $2`
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CallRepo) UpdateStatus(ctx context.Context, id string, status domain.CallStatus) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `UPDATE calls SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	return rowsAffected(res, domain.ErrCallNotFound)
}

func (r *CallRepo) EndCall(ctx context.Context, id string, endedAt time.Time, durationSeconds int) error {
	query := `UPDATE calls SET status = $2, ended_at = $3, duration_seconds = $4 WHERE id = $1`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, string(domain.CallEnded), endedAt, durationSeconds)
	if err != nil {
		return err
	}
	return rowsAffected(res, domain.ErrCallNotFound)
}

func (r *CallRepo) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM calls WHERE caller_id = $1 OR receiver_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
