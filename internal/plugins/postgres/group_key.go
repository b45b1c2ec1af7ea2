package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ghostrecon/internal/core/domain"
)

type GroupKeyRepo struct {
	db *sql.DB
}

func NewGroupKeyRepository(db *sql.DB) *GroupKeyRepo {
	return &GroupKeyRepo{db: db}
}

const (
	distributeKeyQuery = `INSERT INTO group_keys
		(conversation_id, user_id, encrypted_key, distributed_by, distributed_at, rotation_count)
		VALUES ($1, $2, $3, $4, $5, 0)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET
			encrypted_key = EXCLUDED.encrypted_key,
			distributed_by = EXCLUDED.distributed_by,
			distributed_at = EXCLUDED.distributed_at,
			rotation_count = 0`
	rotateKeyQuery = `INSERT INTO group_keys
		(conversation_id, user_id, encrypted_key, distributed_by, distributed_at, rotation_count)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET
			encrypted_key = EXCLUDED.encrypted_key,
			distributed_by = EXCLUDED.distributed_by,
			distributed_at = EXCLUDED.distributed_at,
			rotation_count = group_keys.rotation_count + 1`
)

// StoreKeys writes every key; run it inside a transaction so a distribution
// is all or nothing.
func (r *GroupKeyRepo) StoreKeys(ctx context.Context, keys []domain.GroupKey, rotate bool) error {
	query := distributeKeyQuery
	if rotate {
		query = rotateKeyQuery
	}
	exec := GetExecutor(ctx, r.db)
	for _, k := range keys {
		if _, err := exec.ExecContext(ctx, query,
			k.ConversationID, k.UserID, k.EncryptedKey, k.DistributedBy, k.DistributedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *GroupKeyRepo) GetKey(ctx context.Context, convID, userID string) (*domain.GroupKey, error) {
	k := domain.GroupKey{ConversationID: convID, UserID: userID}
	query := `SELECT encrypted_key, distributed_by, distributed_at, rotation_count
		FROM group_keys WHERE conversation_id = $1 AND user_id = $2`
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, convID, userID).
		Scan(&k.EncryptedKey, &k.DistributedBy, &k.DistributedAt, &k.RotationCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGroupKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}
