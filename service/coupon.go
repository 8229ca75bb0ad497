package service

import (
	"Homezy/dao"
	"Homezy/models"
	"Homezy/pkg/clock"
	"Homezy/pkg/log"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type CouponService struct {
	store dao.PointStore
	clock clock.Clock
}

var _ ICouponService = (*CouponService)(nil)

type ICouponService interface {
	Get(ctx context.Context, code, userID string) (*models.Coupon, error)
	Consume(ctx context.Context, code, userID string) (*models.Coupon, error)
}

func NewCouponService(store dao.PointStore, clk clock.Clock) *CouponService {
	return &CouponService{store: store, clock: clk}
}

// Get 只能查看自己的优惠券，他人的按不存在处理
func (c *CouponService) Get(ctx context.Context, code, userID string) (*models.Coupon, error) {
	coupon, err := c.store.GetCoupon(ctx, code)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if coupon.UserID != userID {
		return nil, ErrCouponNotFound
	}
	return coupon, nil
}

// Consume 核销一次。用满 MaxUses 后状态置为 inactive
func (c *CouponService) Consume(ctx context.Context, code, userID string) (*models.Coupon, error) {
	var consumed *models.Coupon
	err := c.store.Transaction(ctx, func(tx dao.PointTx) error {
		coupon, err := tx.GetCouponForUpdate(ctx, code)
		if errors.Is(err, dao.ErrNotFound) {
			return ErrCouponNotFound
		}
		if err != nil {
			return err
		}
		if coupon.UserID != userID {
			return ErrCouponNotFound
		}
		if coupon.Status != models.CouponStatusActive || coupon.UsedCount >= coupon.MaxUses {
			return ErrCouponInactive
		}
		now := c.clock.Now()
		if !now.Before(coupon.ExpiresAt) {
			return ErrCouponExpired
		}

		coupon.UsedCount++
		if coupon.UsedCount >= coupon.MaxUses {
			coupon.Status = models.CouponStatusInactive
		}
		coupon.UpdatedAt = now
		if err := tx.SaveCoupon(ctx, coupon); err != nil {
			return err
		}
		consumed = coupon
		return nil
	})
	switch {
	case err == nil:
		couponConsumeTotal.WithLabelValues("ok").Inc()
		return consumed, nil
	case errors.Is(err, ErrCouponNotFound):
		couponConsumeTotal.WithLabelValues("not_found").Inc()
	case errors.Is(err, ErrCouponInactive):
		couponConsumeTotal.WithLabelValues("inactive").Inc()
	case errors.Is(err, ErrCouponExpired):
		couponConsumeTotal.WithLabelValues("expired").Inc()
	default:
		couponConsumeTotal.WithLabelValues("error").Inc()
		log.L.Error("consume coupon", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("consume coupon: %w", err)
	}
	return nil, err
}
