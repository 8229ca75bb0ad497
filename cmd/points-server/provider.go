package main

import (
	"Homezy/config"
	"Homezy/dao"
	"Homezy/dao/cache"
	"Homezy/dao/docstore"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// newPointStore 按 points.store 选择存储实现
func newPointStore(conf *config.Config, db *gorm.DB, fs *firestore.Client) (dao.PointStore, error) {
	switch conf.Points.Store {
	case config.StoreFirestore:
		if fs == nil {
			return nil, errors.New("firestore client not initialized")
		}
		return docstore.NewPoint(fs), nil
	default:
		if db == nil {
			return nil, errors.New("mysql not initialized")
		}
		return dao.NewPoint(db), nil
	}
}

func newAccountCache(conf *config.Config, rds *redis.Client) *cache.AccountCache {
	return cache.NewAccountCache(rds, conf.Points.CacheTTL())
}
