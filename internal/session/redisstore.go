package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists Conversation rows to Redis with a TTL, the
// external conversation persistence spec.md §3/§6 delegate to outside
// the core process (grounded on WeKnora's RedisStreamManager).
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore constructs a conversation store over an existing Redis
// client. ttl of zero defaults to 24h, mirroring the teacher's stream
// store default.
func NewRedisStore(client *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "conversation:"
	}
	return &RedisStore{client: client, ttl: ttl, prefix: prefix}
}

func (r *RedisStore) key(convUUID string) string {
	return r.prefix + convUUID
}

// NewConversation allocates a uuid and writes an empty conversation row.
// It takes a ctx, so cmd/gateway wraps it in a closure to serve as a
// ConversationFactory.
func (r *RedisStore) NewConversation(ctx context.Context) (*Conversation, error) {
	conv := &Conversation{UUID: uuid.NewString()}
	return conv, r.Save(ctx, conv)
}

// Save writes conv back to Redis, refreshing its TTL.
func (r *RedisStore) Save(ctx context.Context, conv *Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("session: marshal conversation: %w", err)
	}
	if err := r.client.Set(ctx, r.key(conv.UUID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: save conversation %q: %w", conv.UUID, err)
	}
	return nil
}

// Load reads a conversation by uuid. Returns (nil, nil) if the key has
// expired or was never written.
func (r *RedisStore) Load(ctx context.Context, convUUID string) (*Conversation, error) {
	data, err := r.client.Get(ctx, r.key(convUUID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load conversation %q: %w", convUUID, err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("session: unmarshal conversation %q: %w", convUUID, err)
	}
	return &conv, nil
}
