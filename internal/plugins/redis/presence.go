package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ghostrecon/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

const onlineSetKey = "presence:online"

func userKey(userID string) string {
	return "presence:user:" + userID
}

// PresenceStore mirrors user presence in Redis: a hash per user with the
// current state, plus a sorted set of online users scored by when they came
// online.
type PresenceStore struct {
	rdb redis.Cmdable
}

func NewPresenceStore(rdb redis.Cmdable) *PresenceStore {
	return &PresenceStore{rdb: rdb}
}

func (p *PresenceStore) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	state := "0"
	if online {
		state = "1"
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, userKey(userID), "online", state, "last_seen", at.UTC().UnixMilli())
		if online {
			pipe.ZAdd(ctx, onlineSetKey, redis.Z{Score: float64(at.Unix()), Member: userID})
		} else {
			pipe.ZRem(ctx, onlineSetKey, userID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis presence %s: %w", userID, err)
	}
	return nil
}

func (p *PresenceStore) Presence(ctx context.Context, userIDs []string) (map[string]domain.Presence, error) {
	out := make(map[string]domain.Presence, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(userIDs))
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range userIDs {
			cmds[i] = pipe.HGetAll(ctx, userKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis presence lookup: %w", err)
	}
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		ms, err := strconv.ParseInt(fields["last_seen"], 10, 64)
		if err != nil {
			continue
		}
		out[userIDs[i]] = domain.Presence{
			UserID:   userIDs[i],
			Online:   fields["online"] == "1",
			LastSeen: time.UnixMilli(ms).UTC(),
		}
	}
	return out, nil
}
