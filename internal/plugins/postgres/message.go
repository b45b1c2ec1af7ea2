package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ghostrecon/internal/core/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, sender_alias, content, encrypted,
	self_destruct_seconds, forward_protected, created_at, expires_at, read, recalled`

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		m        domain.Message
		destruct sql.NullInt32
		expires  sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderAlias, &m.Content, &m.Encrypted,
		&destruct, &m.ForwardProtected, &m.CreatedAt, &expires, &m.Read, &m.Recalled); err != nil {
		return nil, err
	}
	if destruct.Valid {
		s := int(destruct.Int32)
		m.SelfDestructSeconds = &s
	}
	if expires.Valid {
		t := expires.Time
		m.ExpiresAt = &t
	}
	return &m, nil
}

func (r *MessageRepo) CreateMessage(ctx context.Context, m *domain.Message) error {
	query := `INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		m.ID, m.ConversationID, m.SenderID, m.SenderAlias, m.Content, m.Encrypted,
		m.SelfDestructSeconds, m.ForwardProtected, m.CreatedAt, m.ExpiresAt, m.Read, m.Recalled)
	return err
}

func (r *MessageRepo) ListVisible(ctx context.Context, convID string, limit int) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = $1 AND recalled = FALSE
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, convID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MessageRepo) DeleteExpired(ctx context.Context, convID string, now time.Time) (int64, error) {
	exec := GetExecutor(ctx, r.db)
	var (
		res sql.Result
		err error
	)
	if convID == "" {
		res, err = exec.ExecContext(ctx,
			`DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	} else {
		res, err = exec.ExecContext(ctx,
			`DELETE FROM messages WHERE conversation_id = $1 AND expires_at IS NOT NULL AND expires_at < $2`, convID, now)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *MessageRepo) MarkRead(ctx context.Context, convID, readerID string) error {
	query := `UPDATE messages SET read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, convID, readerID)
	return err
}

// Recall blanks the message content. Only the sender may recall.
func (r *MessageRepo) Recall(ctx context.Context, id, senderID string) (*domain.Message, error) {
	query := `UPDATE messages SET recalled = TRUE, content = $3
		WHERE id = $1 AND sender_id = $2
		RETURNING ` + messageColumns
	m, err := scanMessage(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id, senderID, domain.RecalledContent))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	return m, err
}

func (r *MessageRepo) CountUnread(ctx context.Context, convID, userID string) (int, error) {
	var n int
	query := `SELECT count(*) FROM messages WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE`
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, convID, userID).Scan(&n)
	return n, err
}

func (r *MessageRepo) DeleteBySender(ctx context.Context, senderID string) (int64, error) {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM messages WHERE sender_id = $1`, senderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
