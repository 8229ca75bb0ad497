package dao

import (
	"Homezy/models"
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

const (
	ActionAll     = ""
	ActionIncome  = "income"
	ActionExpense = "expense"
)

// PointStore 积分存储抽象，MySQL 与 Firestore 各有一份实现
type PointStore interface {
	// Transaction fn 内的读写作为一个原子单元提交，fn 返回错误则全部回滚
	Transaction(ctx context.Context, fn func(tx PointTx) error) error

	// GetAccount 只读，不存在返回 ErrNotFound，不会开户
	GetAccount(ctx context.Context, userID string) (*models.PointsAccount, error)

	ListTransactions(ctx context.Context, userID string, action string, cursor int64, limit int) ([]models.PointTransaction, error)
	ListRedemptions(ctx context.Context, userID string, cursor int64, limit int) ([]models.PointRedemption, error)
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
}

// PointTx 事务内可用的操作
type PointTx interface {
	// GetOrCreateAccount 读取并锁定账户，不存在时以初始状态创建，并发首读只会产生一条记录
	GetOrCreateAccount(ctx context.Context, userID string, now time.Time) (*models.PointsAccount, error)
	SaveAccount(ctx context.Context, account *models.PointsAccount) error

	TransactionExists(ctx context.Context, userID, source, sourceRef string) (bool, error)
	AppendTransaction(ctx context.Context, txn *models.PointTransaction) error

	CouponCodeExists(ctx context.Context, code string) (bool, error)
	CreateCoupon(ctx context.Context, coupon *models.Coupon) error
	GetCouponForUpdate(ctx context.Context, code string) (*models.Coupon, error)
	SaveCoupon(ctx context.Context, coupon *models.Coupon) error

	CreateRedemption(ctx context.Context, redemption *models.PointRedemption) error
	CreateBadge(ctx context.Context, badge *models.UserBadge) error
}
