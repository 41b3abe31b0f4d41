package repo

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/saleswire/server/internal/agent/model"
)

// MemoryStateStore keeps dialogue state in process. The default for the CLI
// and for running without Redis; state is lost on restart.
type MemoryStateStore struct {
	cache *ttlcache.Cache[string, *model.DialogueState]
}

func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *model.DialogueState](ttl),
	)
	go cache.Start()
	return &MemoryStateStore{cache: cache}
}

func (m *MemoryStateStore) Load(_ context.Context, conversationID string) (*model.DialogueState, error) {
	if item := m.cache.Get(conversationID); item != nil {
		return item.Value(), nil
	}
	state := model.NewDialogueState()
	m.cache.Set(conversationID, state, ttlcache.DefaultTTL)
	return state, nil
}

func (m *MemoryStateStore) Save(_ context.Context, conversationID string, state *model.DialogueState) error {
	m.cache.Set(conversationID, state, ttlcache.DefaultTTL)
	return nil
}

func (m *MemoryStateStore) Clear(_ context.Context, conversationID string) error {
	m.cache.Delete(conversationID)
	return nil
}

func (m *MemoryStateStore) List(_ context.Context) ([]model.ConversationInfo, error) {
	items := m.cache.Items()
	infos := make([]model.ConversationInfo, 0, len(items))
	for id, item := range items {
		infos = append(infos, describe(id, item.Value()))
	}
	return infos, nil
}

// Stop shuts down the expiration loop.
func (m *MemoryStateStore) Stop() {
	m.cache.Stop()
}

var _ model.StateStore = (*MemoryStateStore)(nil)
