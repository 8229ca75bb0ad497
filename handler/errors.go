package handler

import (
	"Homezy/pkg/response"
	"Homezy/service"
	"errors"
	"net/http"
)

// 业务错误码，HTTP 状态统一 200
const (
	CodeInvalidParam       = http.StatusBadRequest
	CodeUnauthorized       = http.StatusUnauthorized
	CodeForbidden          = http.StatusForbidden
	CodeNotFound           = http.StatusNotFound
	CodeAlreadyApplied     = http.StatusConflict
	CodeInsufficientPoints = 10001
	CodeCouponInactive     = 10002
	CodeCouponExpired      = 10003
)

// bizError 领域错误转为业务错误，其余原样返回由 Wrap 统一处理
func bizError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidDelta):
		return response.NewError(CodeInvalidParam, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		return response.NewError(CodeInsufficientPoints, "积分不足")
	case errors.Is(err, service.ErrRewardNotFound):
		return response.NewError(CodeNotFound, "奖励不存在")
	case errors.Is(err, service.ErrAlreadyApplied):
		return response.NewError(CodeAlreadyApplied, "该业务已处理，请勿重复操作")
	case errors.Is(err, service.ErrCouponNotFound):
		return response.NewError(CodeNotFound, "优惠券不存在")
	case errors.Is(err, service.ErrCouponInactive):
		return response.NewError(CodeCouponInactive, "优惠券已失效")
	case errors.Is(err, service.ErrCouponExpired):
		return response.NewError(CodeCouponExpired, "优惠券已过期")
	}
	return err
}
