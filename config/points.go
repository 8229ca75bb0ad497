package config

import (
	"fmt"
	"time"
)

const (
	StoreMySQL     = "mysql"
	StoreFirestore = "firestore"
)

type Points struct {
	Store          string `json:"store" yaml:"store"` // mysql | firestore
	CouponPrefix   string `json:"coupon_prefix" yaml:"coupon_prefix"`
	CouponTTLDays  int    `json:"coupon_ttl_days" yaml:"coupon_ttl_days"`
	CouponSalt     string `json:"coupon_salt" yaml:"coupon_salt"`
	CacheTTLSecond int    `json:"cache_ttl_second" yaml:"cache_ttl_second"` // 0 关闭账户缓存
	EventTopic     string `json:"event_topic" yaml:"event_topic"`
	NodeID         int64  `json:"node_id" yaml:"node_id"` // snowflake 节点
	MaxBatchGrants int    `json:"max_batch_grants" yaml:"max_batch_grants"`
}

func (p *Points) applyDefaults() {
	if p.Store == "" {
		p.Store = StoreMySQL
	}
	if p.CouponPrefix == "" {
		p.CouponPrefix = "HOMEZY"
	}
	if p.CouponTTLDays == 0 {
		p.CouponTTLDays = 30
	}
	if p.CouponSalt == "" {
		p.CouponSalt = "homezy-points"
	}
	if p.EventTopic == "" {
		p.EventTopic = "points_changed"
	}
	if p.NodeID == 0 {
		p.NodeID = 1
	}
	if p.MaxBatchGrants == 0 {
		p.MaxBatchGrants = 200
	}
}

func (p *Points) validate() error {
	switch p.Store {
	case StoreMySQL, StoreFirestore:
	default:
		return fmt.Errorf("points.store 不支持: %s", p.Store)
	}
	if p.CouponTTLDays < 0 {
		return fmt.Errorf("points.coupon_ttl_days 不能为负数")
	}
	return nil
}

func (p *Points) CouponTTL() time.Duration {
	return time.Duration(p.CouponTTLDays) * 24 * time.Hour
}

func (p *Points) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLSecond) * time.Second
}
