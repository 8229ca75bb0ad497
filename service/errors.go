package service

import "errors"

var (
	ErrInvalidDelta        = errors.New("invalid point delta")
	ErrAlreadyApplied      = errors.New("point transaction already applied")
	ErrInsufficientBalance = errors.New("insufficient point balance")
	ErrRewardNotFound      = errors.New("reward not found")
	ErrCouponCodeExhausted = errors.New("could not generate a unique coupon code")

	ErrCouponNotFound = errors.New("coupon not found")
	ErrCouponInactive = errors.New("coupon is inactive")
	ErrCouponExpired  = errors.New("coupon has expired")
)
