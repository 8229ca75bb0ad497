package service

import (
	"Homezy/models"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redeemCoupon(t *testing.T, env *testEnv, userID string) string {
	t.Helper()
	ctx := context.Background()
	_, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: userID, Amount: 100, Source: models.SourceManual})
	require.NoError(t, err)
	result, err := env.svc.Redeem(ctx, userID, "coupon_5_off")
	require.NoError(t, err)
	require.NotNil(t, result.Coupon)
	return result.Coupon.Code
}

func TestCoupon_ConsumeOnce(t *testing.T) {
	env := newTestEnv(t)
	coupons := NewCouponService(env.store, env.clock)
	ctx := context.Background()
	code := redeemCoupon(t, env, "u1")

	coupon, err := coupons.Consume(ctx, code, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, coupon.UsedCount)
	assert.Equal(t, models.CouponStatusInactive, coupon.Status)

	_, err = coupons.Consume(ctx, code, "u1")
	assert.ErrorIs(t, err, ErrCouponInactive)

	stored, err := coupons.Get(ctx, code, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)
	assert.Equal(t, models.CouponStatusInactive, stored.Status)
}

func TestCoupon_Expired(t *testing.T) {
	env := newTestEnv(t)
	coupons := NewCouponService(env.store, env.clock)
	code := redeemCoupon(t, env, "u1")

	env.clock.Advance(30 * 24 * time.Hour)
	_, err := coupons.Consume(context.Background(), code, "u1")
	assert.ErrorIs(t, err, ErrCouponExpired)
}

func TestCoupon_ForeignOwner(t *testing.T) {
	env := newTestEnv(t)
	coupons := NewCouponService(env.store, env.clock)
	ctx := context.Background()
	code := redeemCoupon(t, env, "u1")

	_, err := coupons.Get(ctx, code, "u2")
	assert.ErrorIs(t, err, ErrCouponNotFound)
	_, err = coupons.Consume(ctx, code, "u2")
	assert.ErrorIs(t, err, ErrCouponNotFound)

	// 他人尝试不影响券状态
	coupon, err := coupons.Consume(ctx, code, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, coupon.UsedCount)
}

func TestCoupon_NotFound(t *testing.T) {
	env := newTestEnv(t)
	coupons := NewCouponService(env.store, env.clock)
	ctx := context.Background()

	_, err := coupons.Get(ctx, "HOMEZY5-NOPE00", "u1")
	assert.ErrorIs(t, err, ErrCouponNotFound)
	_, err = coupons.Consume(ctx, "HOMEZY5-NOPE00", "u1")
	assert.ErrorIs(t, err, ErrCouponNotFound)
}
