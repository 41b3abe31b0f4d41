package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saleswire/server/internal/agent/model"
	errx "github.com/saleswire/server/internal/core/error"
	logx "github.com/saleswire/server/pkg/logger"
)

// RedisStateStore persists dialogue state as JSON, one key per
// conversation, refreshed on every save so active conversations never
// expire mid-dialogue.
type RedisStateStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStateStore(rdb redis.Cmdable, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStateStore) stateKey(conversationID string) string {
	return fmt.Sprintf("dialogue:%s:state", conversationID)
}

func (r *RedisStateStore) Load(ctx context.Context, conversationID string) (*model.DialogueState, error) {
	key := r.stateKey(conversationID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return model.NewDialogueState(), nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load dialogue state from redis")
		return nil, errx.WrapRedis(err)
	}

	var state model.DialogueState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to unmarshal dialogue state")
		return nil, fmt.Errorf("unmarshal dialogue state: %w", err)
	}
	state.Normalize()
	return &state, nil
}

func (r *RedisStateStore) Save(ctx context.Context, conversationID string, state *model.DialogueState) error {
	b, err := json.Marshal(state)
	if err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to marshal dialogue state")
		return fmt.Errorf("marshal dialogue state: %w", err)
	}

	key := r.stateKey(conversationID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save dialogue state to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateStore) Clear(ctx context.Context, conversationID string) error {
	key := r.stateKey(conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete dialogue state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateStore) List(ctx context.Context) ([]model.ConversationInfo, error) {
	var (
		infos  []model.ConversationInfo
		cursor uint64
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, "dialogue:*:state", 100).Result()
		if err != nil {
			logx.Error().Err(err).Msg("failed to scan dialogue state keys")
			return nil, errx.WrapRedis(err)
		}
		for _, key := range keys {
			conversationID := strings.TrimSuffix(strings.TrimPrefix(key, "dialogue:"), ":state")
			state, err := r.Load(ctx, conversationID)
			if err != nil {
				continue
			}
			infos = append(infos, describe(conversationID, state))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return infos, nil
}

func describe(conversationID string, state *model.DialogueState) model.ConversationInfo {
	return model.ConversationInfo{
		ConversationID: conversationID,
		Messages:       len(state.History),
		PendingQueryID: state.PendingQueryID,
		MissingParams:  state.MissingParams,
	}
}

var _ model.StateStore = (*RedisStateStore)(nil)
