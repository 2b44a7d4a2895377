package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const previewTTL = 5 * time.Minute

// Store caches chat preview snapshots so per-session reconciliation polls do
// not all land on the database.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func previewKey(chatID uint64) string {
	return fmt.Sprintf("chat:preview:%d", chatID)
}

// GetPreview returns redis.Nil when the preview is not cached.
func (s *Store) GetPreview(ctx context.Context, chatID uint64) (string, error) {
	return s.rdb.Get(ctx, previewKey(chatID)).Result()
}

func (s *Store) SetPreview(ctx context.Context, chatID uint64, preview string) error {
	return s.rdb.Set(ctx, previewKey(chatID), preview, previewTTL).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
