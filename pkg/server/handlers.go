package server

import (
	"Homezy/handler"
)

type Handlers struct {
	Points  *handler.PointHandler
	Coupons *handler.CouponHandler
}
