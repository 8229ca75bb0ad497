package client

import (
	"Homezy/config"
	"Homezy/pkg/log"
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient 未配置 redis 时返回 nil，账户缓存随之关闭
func NewRedisClient(conf *config.Config) (*redis.Client, func(), error) {
	if conf.Redis == nil || conf.Redis.Address == "" {
		log.L.Info("redis not configured, account cache disabled")
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.Redis.Address, conf.Redis.Port),
		Password: conf.Redis.Password,
		Username: conf.Redis.Username,
		DB:       conf.Redis.Database,
	})
	if _, err := client.Ping(context.TODO()).Result(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.L.Info("redis client success", zap.String("addr", client.Options().Addr))
	return client, func() { _ = client.Close() }, nil
}
