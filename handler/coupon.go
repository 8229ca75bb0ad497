package handler

import (
	"Homezy/middleware"
	"Homezy/pkg/context"
	"Homezy/pkg/response"
	"Homezy/service"
	"Homezy/types"

	"github.com/gin-gonic/gin"
)

type CouponHandler struct {
	CouponService service.ICouponService
	Auth          *middleware.Authenticator
}

func (h *CouponHandler) RegisterRouter(r gin.IRouter) {
	g := r.Group("/v1/coupons", h.Auth.Auth())
	g.GET("/:code", context.Wrap(h.Get))
	g.POST("/:code/consume", context.Wrap(h.Consume))
}

func (h *CouponHandler) Get(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(CodeUnauthorized, err.Error())
	}
	coupon, err := h.CouponService.Get(c.Request.Context(), c.Param("code"), uid)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, types.NewCouponResp(coupon))
	return nil
}

// Consume 下单时核销
func (h *CouponHandler) Consume(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(CodeUnauthorized, err.Error())
	}
	coupon, err := h.CouponService.Consume(c.Request.Context(), c.Param("code"), uid)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, types.NewCouponResp(coupon))
	return nil
}
