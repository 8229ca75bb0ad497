package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// 积分变动来源
const (
	SourceBooking        = "booking"
	SourceReviewReceived = "review_received"
	SourceReviewDeleted  = "review_deleted"
	SourceServiceFee     = "service_fee_payment"
	SourceRedeem         = "redeem"
	SourceManual         = "manual"
)

const (
	MetaKindBooking    = "booking"
	MetaKindReview     = "review"
	MetaKindServiceFee = "service_fee"
	MetaKindRedeem     = "redeem"
	MetaKindManual     = "manual"
)

var sourceMetaKinds = map[string]string{
	SourceBooking:        MetaKindBooking,
	SourceReviewReceived: MetaKindReview,
	SourceReviewDeleted:  MetaKindReview,
	SourceServiceFee:     MetaKindServiceFee,
	SourceRedeem:         MetaKindRedeem,
	SourceManual:         MetaKindManual,
}

// Meta 每种来源对应一种结构化上下文
type Meta interface {
	MetaKind() string
}

type BookingMeta struct {
	BookingID   string `json:"bookingId,omitempty"`
	ListingName string `json:"listingName,omitempty"`
}

type ReviewMeta struct {
	ReviewID    string `json:"reviewId,omitempty"`
	ListingName string `json:"listingName,omitempty"`
	Rating      int    `json:"rating,omitempty"`
}

type ServiceFeeMeta struct {
	PaymentID     string `json:"paymentId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
}

type RedeemMeta struct {
	RewardID string  `json:"rewardId"`
	Coupon   *string `json:"coupon"`
}

type ManualMeta struct {
	Reason   string `json:"reason,omitempty"`
	Operator string `json:"operator,omitempty"`
}

func (BookingMeta) MetaKind() string    { return MetaKindBooking }
func (ReviewMeta) MetaKind() string     { return MetaKindReview }
func (ServiceFeeMeta) MetaKind() string { return MetaKindServiceFee }
func (RedeemMeta) MetaKind() string     { return MetaKindRedeem }
func (ManualMeta) MetaKind() string     { return MetaKindManual }

func IsKnownSource(source string) bool {
	_, ok := sourceMetaKinds[source]
	return ok
}

// ValidateMeta 校验 meta 类型与来源匹配，nil 对所有来源合法
func ValidateMeta(source string, meta Meta) error {
	kind, ok := sourceMetaKinds[source]
	if !ok {
		return fmt.Errorf("unknown point source %q", source)
	}
	if meta == nil {
		return nil
	}
	if meta.MetaKind() != kind {
		return fmt.Errorf("meta kind %q does not match source %q", meta.MetaKind(), source)
	}
	return nil
}

func EncodeMeta(meta Meta) (datatypes.JSON, error) {
	if meta == nil {
		return datatypes.JSON("{}"), nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// NewMeta 返回来源对应的空 meta 指针，用于反序列化
func NewMeta(source string) (Meta, error) {
	switch sourceMetaKinds[source] {
	case MetaKindBooking:
		return &BookingMeta{}, nil
	case MetaKindReview:
		return &ReviewMeta{}, nil
	case MetaKindServiceFee:
		return &ServiceFeeMeta{}, nil
	case MetaKindRedeem:
		return &RedeemMeta{}, nil
	case MetaKindManual:
		return &ManualMeta{}, nil
	}
	return nil, fmt.Errorf("unknown point source %q", source)
}

func DecodeMeta(source string, raw []byte) (Meta, error) {
	m, err := NewMeta(source)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, err
	}
	return m, nil
}
