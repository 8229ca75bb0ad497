package cache

import (
	"Homezy/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AccountCache 积分账户快照缓存，账户变动提交后删除
type AccountCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewAccountCache(rds *redis.Client, ttl time.Duration) *AccountCache {
	return &AccountCache{redis: rds, ttl: ttl}
}

// Enabled nil 接收者或未配置 Redis / TTL 时缓存关闭
func (a *AccountCache) Enabled() bool {
	return a != nil && a.redis != nil && a.ttl > 0
}

// Get 未命中返回 nil, nil
func (a *AccountCache) Get(ctx context.Context, userID string) (*models.PointsAccount, error) {
	if !a.Enabled() {
		return nil, nil
	}
	raw, err := a.redis.Get(ctx, a.name(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var account models.PointsAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (a *AccountCache) Set(ctx context.Context, account *models.PointsAccount) error {
	if !a.Enabled() {
		return nil
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return a.redis.Set(ctx, a.name(account.UserID), raw, a.ttl).Err()
}

func (a *AccountCache) Del(ctx context.Context, userID string) error {
	if !a.Enabled() {
		return nil
	}
	return a.redis.Del(ctx, a.name(userID)).Err()
}

// points:account:{uid}
func (a *AccountCache) name(userID string) string {
	return fmt.Sprintf("points:account:%s", userID)
}
