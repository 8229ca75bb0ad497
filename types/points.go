package types

import "Homezy/models"

type TierResp struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Min        int64  `json:"min"`
	Multiplier string `json:"multiplier"`
	Color      string `json:"color"`
}

func NewTierResp(t models.Tier) TierResp {
	return TierResp{
		ID:         t.ID,
		Name:       t.Name,
		Min:        t.Min,
		Multiplier: t.Multiplier.StringFixed(2),
		Color:      t.Color,
	}
}

// PointsAccountResp “我的积分”顶部概览
type PointsAccountResp struct {
	UserID       string    `json:"user_id"`
	Total        int64     `json:"total"`
	Tier         TierResp  `json:"tier"`
	NextTier     *TierResp `json:"next_tier"`      // 已是最高等级时为 null
	PointsToNext int64     `json:"points_to_next"` // 距下一等级还差多少
	UpdatedAt    string    `json:"updated_at"`
}

// ApplyDeltaReq 内部业务（订单完成、评价、服务费）调用的积分变动
type ApplyDeltaReq struct {
	UserID    string         `json:"user_id" binding:"required"`
	Amount    int64          `json:"amount"`
	Source    string         `json:"source" binding:"required"`
	SourceRef string         `json:"source_ref" binding:"max=64"` // 业务单号 (幂等关键)
	Meta      map[string]any `json:"meta"`
}

type ApplyDeltaResp struct {
	UserID   string `json:"user_id"`
	NewTotal int64  `json:"new_total"`
}

type GrantBatchReq struct {
	Grants []ApplyDeltaReq `json:"grants" binding:"required,min=1,dive"`
}

type GrantResult struct {
	Index    int    `json:"index"`
	UserID   string `json:"user_id"`
	NewTotal int64  `json:"new_total"`
	Error    string `json:"error,omitempty"`
}

type RedeemReq struct {
	RewardID string `json:"reward_id" binding:"required"`
}

type CouponResp struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	MaxUses       int    `json:"max_uses"`
	UsedCount     int    `json:"used_count"`
	Status        string `json:"status"`
	ExpiresAt     string `json:"expires_at"`
}

func NewCouponResp(c *models.Coupon) *CouponResp {
	if c == nil {
		return nil
	}
	return &CouponResp{
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		MaxUses:       c.MaxUses,
		UsedCount:     c.UsedCount,
		Status:        c.Status,
		ExpiresAt:     c.ExpiresAt.Format(TimeLayout),
	}
}

type RedeemResult struct {
	NewTotal     int64       `json:"new_total"`
	Tier         string      `json:"tier"`
	RedemptionID int64       `json:"redemption_id"`
	Coupon       *CouponResp `json:"coupon"`
}

// PointRecord 单条流水
type PointRecord struct {
	ID         int64       `json:"id"`
	Amount     int64       `json:"amount"`      // 正数为入账，负数为支出
	TotalAfter int64       `json:"total_after"` // 变动后的余额快照
	TierAfter  string      `json:"tier_after"`
	Source     string      `json:"source"`
	SourceRef  string      `json:"source_ref,omitempty"`
	OrderType  string      `json:"order_type"` // INCOME / EXPENSE
	Meta       models.Meta `json:"meta"`
	CreatedAt  string      `json:"created_at"`
}

type ListPointsRecord struct {
	Records    []PointRecord `json:"records"`
	NextCursor int64         `json:"next_cursor"` // 游标：用于下一页请求
	HasMore    bool          `json:"has_more"`
}

type ListPointRecordsReq struct {
	Action uint8 `form:"action" binding:"oneof=0 1 2"` // 0-全部, 1-仅收入, 2-仅支出
	Cursor int64 `form:"cursor"`                       // 分页游标 (ID)
	Limit  int   `form:"limit,default=10" binding:"min=0,max=100"`
}

type RedemptionItem struct {
	ID         int64   `json:"id"`
	RewardID   string  `json:"reward_id"`
	Label      string  `json:"label"`
	Cost       int64   `json:"cost"`
	NewTotal   int64   `json:"new_total"`
	CouponCode *string `json:"coupon_code"`
	CreatedAt  string  `json:"created_at"`
}

type ListRedemptions struct {
	Records    []RedemptionItem `json:"records"`
	NextCursor int64            `json:"next_cursor"`
	HasMore    bool             `json:"has_more"`
}

type ListRedemptionsReq struct {
	Cursor int64 `form:"cursor"`
	Limit  int   `form:"limit,default=10" binding:"min=0,max=100"`
}

const TimeLayout = "2006-01-02 15:04:05"
