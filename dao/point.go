package dao

import (
	"Homezy/models"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Point struct {
	Db *gorm.DB
}

var _ PointStore = (*Point)(nil)

func NewPoint(db *gorm.DB) *Point {
	return &Point{Db: db}
}

func (p *Point) Transaction(ctx context.Context, fn func(tx PointTx) error) error {
	return p.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pointTx{db: tx})
	})
}

func (p *Point) GetAccount(ctx context.Context, userID string) (*models.PointsAccount, error) {
	var account models.PointsAccount
	err := p.Db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// ListTransactions 按 ID 倒序的游标分页
func (p *Point) ListTransactions(ctx context.Context, userID string, action string, cursor int64, limit int) ([]models.PointTransaction, error) {
	var logs []models.PointTransaction
	query := p.Db.WithContext(ctx).Where("user_id = ?", userID)

	switch action {
	case ActionIncome:
		query = query.Where("amount > ?", 0)
	case ActionExpense:
		query = query.Where("amount < ?", 0)
	}

	if cursor > 0 {
		query = query.Where("id < ?", cursor)
	}

	err := query.Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (p *Point) ListRedemptions(ctx context.Context, userID string, cursor int64, limit int) ([]models.PointRedemption, error) {
	var list []models.PointRedemption
	query := p.Db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor > 0 {
		query = query.Where("id < ?", cursor)
	}
	err := query.Order("id DESC").Limit(limit).Find(&list).Error
	return list, err
}

func (p *Point) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := p.Db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if err != nil {
		return nil, translate(err)
	}
	return &coupon, nil
}

type pointTx struct {
	db *gorm.DB
}

func (t *pointTx) GetOrCreateAccount(ctx context.Context, userID string, now time.Time) (*models.PointsAccount, error) {
	// 先插入再加锁。MySQL 对不存在的主键 FOR UPDATE 只拿到间隙锁，两个事务都先锁再插会互相等待死锁
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.NewPointsAccount(userID, now)).Error
	if err != nil {
		return nil, err
	}
	return t.lockAccount(ctx, userID)
}

func (t *pointTx) lockAccount(ctx context.Context, userID string) (*models.PointsAccount, error) {
	var account models.PointsAccount
	err := forUpdate(t.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (t *pointTx) SaveAccount(ctx context.Context, account *models.PointsAccount) error {
	// 用 map 更新，避免 total=0 被 gorm 当作零值跳过
	return t.db.WithContext(ctx).Model(&models.PointsAccount{}).
		Where("user_id = ?", account.UserID).
		Updates(map[string]interface{}{
			"total":      account.Total,
			"tier":       account.Tier,
			"updated_at": account.UpdatedAt,
		}).Error
}

func (t *pointTx) TransactionExists(ctx context.Context, userID, source, sourceRef string) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&models.PointTransaction{}).
		Where("user_id = ? AND source = ? AND source_ref = ?", userID, source, sourceRef).
		Count(&count).Error
	return count > 0, err
}

// AppendTransaction 同一 (user, source, source_ref) 命中唯一索引时返回 ErrDuplicate
func (t *pointTx) AppendTransaction(ctx context.Context, txn *models.PointTransaction) error {
	return translate(t.db.WithContext(ctx).Create(txn).Error)
}

func (t *pointTx) CouponCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&models.Coupon{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (t *pointTx) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	return translate(t.db.WithContext(ctx).Create(coupon).Error)
}

func (t *pointTx) GetCouponForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := forUpdate(t.db.WithContext(ctx)).
		Where("code = ?", code).
		First(&coupon).Error
	if err != nil {
		return nil, translate(err)
	}
	return &coupon, nil
}

func (t *pointTx) SaveCoupon(ctx context.Context, coupon *models.Coupon) error {
	return t.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ?", coupon.ID).
		Updates(map[string]interface{}{
			"used_count": coupon.UsedCount,
			"status":     coupon.Status,
			"updated_at": coupon.UpdatedAt,
		}).Error
}

func (t *pointTx) CreateRedemption(ctx context.Context, redemption *models.PointRedemption) error {
	return t.db.WithContext(ctx).Create(redemption).Error
}

func (t *pointTx) CreateBadge(ctx context.Context, badge *models.UserBadge) error {
	return t.db.WithContext(ctx).Create(badge).Error
}

// forUpdate SQLite 没有行锁，单写者语义已经保证串行
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
