package models

const (
	RewardTypeCoupon = "coupon"
	RewardTypeBadge  = "badge"

	DiscountFixed      = "fixed"
	DiscountPercentage = "percentage"
)

type Reward struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Cost         int64  `json:"cost"`
	Type         string `json:"type"`
	DiscountType string `json:"discount_type,omitempty"`
	Value        int64  `json:"value,omitempty"`
}

func (r Reward) IsCoupon() bool {
	return r.Type == RewardTypeCoupon
}

// Rewards 兑换目录，上线时固定，不做库存和动态定价
var Rewards = []Reward{
	{ID: "coupon_5_off", Label: "$5 off your next stay", Cost: 100, Type: RewardTypeCoupon, DiscountType: DiscountFixed, Value: 5},
	{ID: "coupon_10_pct", Label: "10% off your next stay", Cost: 300, Type: RewardTypeCoupon, DiscountType: DiscountPercentage, Value: 10},
	{ID: "coupon_25_off", Label: "$25 off your next stay", Cost: 800, Type: RewardTypeCoupon, DiscountType: DiscountFixed, Value: 25},
	{ID: "badge_super_guest", Label: "Super Guest badge", Cost: 1000, Type: RewardTypeBadge},
}

func RewardByID(id string) (Reward, bool) {
	for _, r := range Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}
