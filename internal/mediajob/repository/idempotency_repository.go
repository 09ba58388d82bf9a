package repository

import (
	"context"
	"errors"
	"time"

	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/pkg/database"
)

// IdempotencyRepo definition idempotency ledger operations
//
// 首次完成時寫入一次，之後到期前唯讀；過期淘汰由 Redis TTL 負責，
// 不在這層實作。
type IdempotencyRepo interface {
	// Lookup 回傳 token 對應的紀錄，不存在時回傳 (nil, nil)
	Lookup(ctx context.Context, token string) (*domain.IdempotencyEntry, error)
	// Record write-once：token 已存在時不覆寫，回傳既有與否
	Record(ctx context.Context, entry *domain.IdempotencyEntry) (bool, error)
}

type idempotencyRepo struct {
	redis database.RedisRepository[domain.IdempotencyEntry]
	ttl   time.Duration
}

// NewIdempotencyRepo create an IdempotencyRepo
func NewIdempotencyRepo(redis database.RedisRepository[domain.IdempotencyEntry], ttl time.Duration) IdempotencyRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &idempotencyRepo{redis: redis, ttl: ttl}
}

func ledgerKey(token string) string {
	return "idempotency:" + token
}

func (r *idempotencyRepo) Lookup(ctx context.Context, token string) (*domain.IdempotencyEntry, error) {
	entry, err := r.redis.Get(ctx, ledgerKey(token))
	if err != nil {
		if errors.Is(err, database.ErrRedisNil) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *idempotencyRepo) Record(ctx context.Context, entry *domain.IdempotencyEntry) (bool, error) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(r.ttl)

	// SetNX：同 token 的並發寫入只有第一個生效
	return r.redis.SetIfAbsent(ctx, ledgerKey(entry.Token), *entry, r.ttl)
}
