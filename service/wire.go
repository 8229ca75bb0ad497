package service

import (
	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	NewPointService,
	wire.Bind(new(IPointService), new(*PointService)),

	NewCouponService,
	wire.Bind(new(ICouponService), new(*CouponService)),
)
