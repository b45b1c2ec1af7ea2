package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ghostrecon/internal/core/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `c.id, c.name, c.is_group, c.created_by, c.created_at, c.last_message,
	c.last_message_at, c.encryption_protocol, c.key_rotation_count`

// CreateConversation inserts the conversation and its participant rows. Call
// it inside a transaction.
func (r *ConversationRepo) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	exec := GetExecutor(ctx, r.db)
	query := `INSERT INTO conversations (id, name, is_group, created_by, created_at, last_message,
		last_message_at, encryption_protocol, key_rotation_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := exec.ExecContext(ctx, query, c.ID, c.Name, c.IsGroup, c.CreatedBy, c.CreatedAt,
		c.LastMessage, c.LastMessageAt, c.EncryptionProtocol, c.KeyRotationCount); err != nil {
		return err
	}
	for i, uid := range c.Participants {
		// distinct joined_at keeps participant order stable
		joined := c.CreatedAt.Add(time.Duration(i) * time.Microsecond)
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, joined_at) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`,
			c.ID, uid, joined); err != nil {
			return err
		}
	}
	return nil
}

// scanConversations folds rows of (conversation columns..., participant) into
// conversations, preserving row order.
func scanConversations(rows *sql.Rows) ([]domain.Conversation, error) {
	var out []domain.Conversation
	index := map[string]int{}
	for rows.Next() {
		var (
			c           domain.Conversation
			name, last  sql.NullString
			participant string
		)
		if err := rows.Scan(&c.ID, &name, &c.IsGroup, &c.CreatedBy, &c.CreatedAt, &last,
			&c.LastMessageAt, &c.EncryptionProtocol, &c.KeyRotationCount, &participant); err != nil {
			return nil, err
		}
		i, seen := index[c.ID]
		if !seen {
			if name.Valid {
				c.Name = &name.String
			}
			if last.Valid {
				c.LastMessage = &last.String
			}
			c.Participants = []string{}
			out = append(out, c)
			i = len(out) - 1
			index[c.ID] = i
		}
		out[i].Participants = append(out[i].Participants, participant)
	}
	return out, rows.Err()
}

func (r *ConversationRepo) GetConversationByID(ctx context.Context, id string) (*domain.Conversation, error) {
	if id == "" {
		return nil, domain.ErrInvalidConversationID
	}
	query := `SELECT ` + conversationColumns + `, p.user_id
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE c.id = $1
		ORDER BY p.joined_at`
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	convs, err := scanConversations(rows)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, domain.ErrConversationNotFound
	}
	return &convs[0], nil
}

func (r *ConversationRepo) FindDirect(ctx context.Context, a, b string) (*domain.Conversation, error) {
	query := `SELECT c.id FROM conversations c
		WHERE c.is_group = FALSE
		AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.user_id = $1)
		AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.user_id = $2)
		AND (SELECT count(*) FROM conversation_participants p WHERE p.conversation_id = c.id) = 2
		ORDER BY c.created_at
		LIMIT 1`
	var id string
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, a, b).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetConversationByID(ctx, id)
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	query := `WITH mine AS (
			SELECT c.* FROM conversations c
			JOIN conversation_participants p ON p.conversation_id = c.id
			WHERE p.user_id = $1
			ORDER BY c.last_message_at DESC
			LIMIT $2
		)
		SELECT ` + conversationColumns + `, p.user_id
		FROM mine c
		JOIN conversation_participants p ON p.conversation_id = c.id
		ORDER BY c.last_message_at DESC, c.id, p.joined_at`
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConversations(rows)
}

// ConversationMembers resolves the current participant ids. A conversation
// always has at least its creator, so no rows means it does not exist.
func (r *ConversationRepo) ConversationMembers(ctx context.Context, id string) ([]string, error) {
	query := `SELECT user_id FROM conversation_participants WHERE conversation_id = $1 ORDER BY joined_at`
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		members = append(members, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, domain.ErrConversationNotFound
	}
	return members, nil
}

func (r *ConversationRepo) IsParticipant(ctx context.Context, id, userID string) (bool, error) {
	var ok bool
	query := `SELECT EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id, userID).Scan(&ok)
	return ok, err
}

func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, id, preview string, at time.Time) error {
	query := `UPDATE conversations SET last_message = $2, last_message_at = $3 WHERE id = $1`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, preview, at)
	if err != nil {
		return err
	}
	return rowsAffected(res, domain.ErrConversationNotFound)
}

func (r *ConversationRepo) IncrementKeyRotation(ctx context.Context, id string) error {
	query := `UPDATE conversations SET key_rotation_count = key_rotation_count + 1 WHERE id = $1`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, domain.ErrConversationNotFound)
}

func (r *ConversationRepo) DeleteCreatedBy(ctx context.Context, userID string) (int64, error) {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM conversations WHERE created_by = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ConversationRepo) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	query := `SELECT count(*) FROM conversation_participants WHERE user_id = $1`
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&n)
	return n, err
}
