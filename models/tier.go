package models

import "github.com/shopspring/decimal"

const (
	TierBronze   = "bronze"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
)

// Tier 会员等级，Min 为该等级起始积分（含）
type Tier struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Min        int64           `json:"min"`
	Multiplier decimal.Decimal `json:"multiplier"` // 预留字段，当前积分累加不乘倍率
	Color      string          `json:"color"`
}

// Tiers 按 Min 严格递增，第一个等级 Min 必须为 0
var Tiers = []Tier{
	{ID: TierBronze, Name: "Bronze", Min: 0, Multiplier: decimal.RequireFromString("1.00"), Color: "#CD7F32"},
	{ID: TierSilver, Name: "Silver", Min: 500, Multiplier: decimal.RequireFromString("1.10"), Color: "#C0C0C0"},
	{ID: TierGold, Name: "Gold", Min: 1500, Multiplier: decimal.RequireFromString("1.25"), Color: "#FFD700"},
	{ID: TierPlatinum, Name: "Platinum", Min: 5000, Multiplier: decimal.RequireFromString("1.50"), Color: "#E5E4E2"},
}

// TierForPoints 返回 Min <= total 的最高等级，负数按最低等级处理
func TierForPoints(total int64) Tier {
	current := Tiers[0]
	for _, t := range Tiers[1:] {
		if t.Min > total {
			break
		}
		current = t
	}
	return current
}

// NextTier 返回当前等级的下一级，已是最高等级时 ok=false
func NextTier(total int64) (Tier, bool) {
	for _, t := range Tiers {
		if t.Min > total {
			return t, true
		}
	}
	return Tier{}, false
}

// TierRank 等级序号，未知等级返回 -1
func TierRank(id string) int {
	for i, t := range Tiers {
		if t.ID == id {
			return i
		}
	}
	return -1
}
