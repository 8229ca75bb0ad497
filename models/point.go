package models

import (
	"time"

	"gorm.io/datatypes"
)

// PointsAccount 用户积分账户，每个用户一条，首次读取时创建
type PointsAccount struct {
	UserID    string    `gorm:"primaryKey;column:user_id;size:128" json:"user_id"`
	Total     int64     `gorm:"column:total;not null;default:0" json:"total"`
	Tier      string    `gorm:"column:tier;size:32;not null" json:"tier"` // 只由 Total 推导，不单独写
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (PointsAccount) TableName() string {
	return "user_points"
}

// NewPointsAccount 初始账户：0 积分，最低等级
func NewPointsAccount(userID string, now time.Time) *PointsAccount {
	return &PointsAccount{
		UserID:    userID,
		Total:     0,
		Tier:      TierForPoints(0).ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PointTransaction 积分流水，写入后不再修改
type PointTransaction struct {
	ID         int64          `gorm:"primaryKey;column:id;autoIncrement:false" json:"id"`
	UserID     string         `gorm:"column:user_id;size:128;not null;index:idx_point_tx_user;uniqueIndex:ux_point_tx_ref,priority:1" json:"user_id"`
	Amount     int64          `gorm:"column:amount;not null" json:"amount"` // 变动数额（正负）
	Source     string         `gorm:"column:source;size:32;not null;uniqueIndex:ux_point_tx_ref,priority:2" json:"source"`
	SourceRef  *string        `gorm:"column:source_ref;size:64;uniqueIndex:ux_point_tx_ref,priority:3" json:"source_ref,omitempty"` // 业务单号，幂等用
	Meta       datatypes.JSON `gorm:"column:meta" json:"meta"`
	TotalAfter int64          `gorm:"column:total_after;not null" json:"total_after"` // 变动后余额快照
	TierAfter  string         `gorm:"column:tier_after;size:32;not null" json:"tier_after"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}

type PointRedemption struct {
	ID         int64     `gorm:"primaryKey;column:id;autoIncrement:false" json:"id"`
	UserID     string    `gorm:"column:user_id;size:128;not null;index" json:"user_id"`
	RewardID   string    `gorm:"column:reward_id;size:64;not null" json:"reward_id"`
	Label      string    `gorm:"column:label;size:255" json:"label"`
	Cost       int64     `gorm:"column:cost;not null" json:"cost"`
	NewTotal   int64     `gorm:"column:new_total;not null" json:"new_total"`
	CouponCode *string   `gorm:"column:coupon_code;size:64" json:"coupon_code"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
}

func (PointRedemption) TableName() string {
	return "point_redemptions"
}

const (
	CouponStatusActive   = "active"
	CouponStatusInactive = "inactive"
)

// Coupon 兑换生成的一次性优惠券，核销方负责在用满时置为 inactive
type Coupon struct {
	ID            int64     `gorm:"primaryKey;column:id;autoIncrement:false" json:"id"`
	Code          string    `gorm:"column:code;size:64;not null;uniqueIndex" json:"code"`
	DiscountType  string    `gorm:"column:discount_type;size:16;not null" json:"discount_type"`
	DiscountValue int64     `gorm:"column:discount_value;not null" json:"discount_value"`
	UserID        string    `gorm:"column:user_id;size:128;not null;index" json:"user_id"`
	MaxUses       int       `gorm:"column:max_uses;not null" json:"max_uses"`
	UsedCount     int       `gorm:"column:used_count;not null;default:0" json:"used_count"`
	ExpiresAt     time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	Status        string    `gorm:"column:status;size:16;not null" json:"status"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (Coupon) TableName() string {
	return "coupons"
}

type UserBadge struct {
	ID        int64     `gorm:"primaryKey;column:id;autoIncrement:false" json:"id"`
	UserID    string    `gorm:"column:user_id;size:128;not null;index" json:"user_id"`
	RewardID  string    `gorm:"column:reward_id;size:64;not null" json:"reward_id"`
	Label     string    `gorm:"column:label;size:255" json:"label"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}

// AllModels 迁移用
func AllModels() []any {
	return []any{
		&PointsAccount{},
		&PointTransaction{},
		&PointRedemption{},
		&Coupon{},
		&UserBadge{},
	}
}
