package handler

import (
	"Homezy/dao"
	"Homezy/middleware"
	"Homezy/models"
	"Homezy/pkg/context"
	"Homezy/pkg/response"
	"Homezy/service"
	"Homezy/types"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
)

type PointHandler struct {
	PointService service.IPointService
	Auth         *middleware.Authenticator
}

func (p *PointHandler) RegisterRouter(r gin.IRouter) {
	g := r.Group("/v1/points", p.Auth.Auth())
	g.GET("/account", context.Wrap(p.Account))
	g.GET("/tiers", context.Wrap(p.Tiers))
	g.GET("/rewards", context.Wrap(p.Rewards))
	g.GET("/records", context.Wrap(p.GetRecords))
	g.GET("/redemptions", context.Wrap(p.GetRedemptions))
	g.POST("/redeem", context.Wrap(p.Redeem))

	// 订单、评价、支付等内部服务调用
	admin := g.Group("", middleware.RequireAdmin())
	admin.POST("/events", context.Wrap(p.ApplyEvent))
	admin.POST("/grants", context.Wrap(p.GrantBatch))
}

func (p *PointHandler) Account(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(CodeUnauthorized, err.Error())
	}
	resp, err := p.PointService.AccountDashboard(c.Request.Context(), uid)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, resp)
	return nil
}

func (p *PointHandler) Tiers(c *gin.Context) error {
	list := make([]types.TierResp, 0, len(models.Tiers))
	for _, t := range models.Tiers {
		list = append(list, types.NewTierResp(t))
	}
	response.Success(c, list)
	return nil
}

func (p *PointHandler) Rewards(c *gin.Context) error {
	response.Success(c, models.Rewards)
	return nil
}

func (p *PointHandler) GetRecords(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(CodeUnauthorized, err.Error())
	}
	var req types.ListPointRecordsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		return response.NewError(CodeInvalidParam, err.Error())
	}

	action := dao.ActionAll
	switch req.Action {
	case 1:
		action = dao.ActionIncome
	case 2:
		action = dao.ActionExpense
	}
	resp, err := p.PointService.ListRecords(c.Request.Context(), uid, action, req.Cursor, req.Limit)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, resp)
	return nil
}

func (p *PointHandler) GetRedemptions(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(CodeUnauthorized, err.Error())
	}
	var req types.ListRedemptionsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		return response.NewError(CodeInvalidParam, err.Error())
	}
	resp, err := p.PointService.ListRedemptions(c.Request.Context(), uid, req.Cursor, req.Limit)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, resp)
	return nil
}

func (p *PointHandler) Redeem(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(CodeUnauthorized, err.Error())
	}
	var req types.RedeemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(CodeInvalidParam, err.Error())
	}
	resp, err := p.PointService.Redeem(c.Request.Context(), uid, req.RewardID)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, resp)
	return nil
}

func (p *PointHandler) ApplyEvent(c *gin.Context) error {
	var req types.ApplyDeltaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(CodeInvalidParam, err.Error())
	}
	delta, err := toPointDelta(req)
	if err != nil {
		return response.NewError(CodeInvalidParam, err.Error())
	}
	total, err := p.PointService.ApplyDelta(c.Request.Context(), delta)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, types.ApplyDeltaResp{UserID: req.UserID, NewTotal: total})
	return nil
}

func (p *PointHandler) GrantBatch(c *gin.Context) error {
	var req types.GrantBatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(CodeInvalidParam, err.Error())
	}
	deltas := make([]service.PointDelta, 0, len(req.Grants))
	for i, g := range req.Grants {
		delta, err := toPointDelta(g)
		if err != nil {
			return response.NewError(CodeInvalidParam, fmt.Sprintf("grants[%d]: %v", i, err))
		}
		deltas = append(deltas, delta)
	}
	results, err := p.PointService.GrantBatch(c.Request.Context(), deltas)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, results)
	return nil
}

// toPointDelta meta 按 source 解析成对应的结构
func toPointDelta(req types.ApplyDeltaReq) (service.PointDelta, error) {
	delta := service.PointDelta{
		UserID:    req.UserID,
		Amount:    req.Amount,
		Source:    req.Source,
		SourceRef: req.SourceRef,
	}
	if len(req.Meta) == 0 {
		return delta, nil
	}
	raw, err := json.Marshal(req.Meta)
	if err != nil {
		return delta, err
	}
	meta, err := models.DecodeMeta(req.Source, raw)
	if err != nil {
		return delta, err
	}
	delta.Meta = meta
	return delta, nil
}
