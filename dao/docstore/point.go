// Package docstore 基于 Cloud Firestore 的积分存储，集合结构与 Web 端一致
package docstore

import (
	"Homezy/dao"
	"Homezy/models"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/datatypes"
)

const (
	colAccounts     = "userPoints"
	colTransactions = "pointTransactions"
	colRedemptions  = "redemptions"
	colCoupons      = "coupons"
	colBadges       = "userBadges"
)

const (
	directionIncome  = "income"
	directionExpense = "expense"
)

type Point struct {
	client *firestore.Client
}

var _ dao.PointStore = (*Point)(nil)

func NewPoint(client *firestore.Client) *Point {
	return &Point{client: client}
}

// Transaction Firestore 要求事务内先读后写，写操作先缓存，fn 成功后统一提交。
// 发生争用时 fn 会被重试，调用方不能在 fn 内产生存储之外的副作用。
func (p *Point) Transaction(ctx context.Context, fn func(tx dao.PointTx) error) error {
	err := p.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		t := &pointTx{client: p.client, tx: tx}
		if err := fn(t); err != nil {
			return err
		}
		return t.flush()
	})
	return translate(err)
}

func (p *Point) GetAccount(ctx context.Context, userID string) (*models.PointsAccount, error) {
	snap, err := p.client.Collection(colAccounts).Doc(userID).Get(ctx)
	if err != nil {
		return nil, translate(err)
	}
	var doc accountDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (p *Point) ListTransactions(ctx context.Context, userID string, action string, cursor int64, limit int) ([]models.PointTransaction, error) {
	q := p.client.Collection(colTransactions).Where("userId", "==", userID)
	switch action {
	case dao.ActionIncome:
		q = q.Where("direction", "==", directionIncome)
	case dao.ActionExpense:
		q = q.Where("direction", "==", directionExpense)
	}
	if cursor > 0 {
		q = q.Where("id", "<", cursor)
	}
	snaps, err := q.OrderBy("id", firestore.Desc).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	list := make([]models.PointTransaction, 0, len(snaps))
	for _, snap := range snaps {
		var doc transactionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		txn, err := doc.model()
		if err != nil {
			return nil, err
		}
		list = append(list, *txn)
	}
	return list, nil
}

func (p *Point) ListRedemptions(ctx context.Context, userID string, cursor int64, limit int) ([]models.PointRedemption, error) {
	q := p.client.Collection(colRedemptions).Where("userId", "==", userID)
	if cursor > 0 {
		q = q.Where("id", "<", cursor)
	}
	snaps, err := q.OrderBy("id", firestore.Desc).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	list := make([]models.PointRedemption, 0, len(snaps))
	for _, snap := range snaps {
		var doc redemptionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		list = append(list, doc.model())
	}
	return list, nil
}

func (p *Point) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	snap, err := p.client.Collection(colCoupons).Doc(code).Get(ctx)
	if err != nil {
		return nil, translate(err)
	}
	var doc couponDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

type pendingWrite struct {
	ref    *firestore.DocumentRef
	data   interface{}
	create bool
}

type pointTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
	writes []pendingWrite
}

// 同一文档多次写入只保留最后一次
func (t *pointTx) write(ref *firestore.DocumentRef, data interface{}, create bool) {
	for i, w := range t.writes {
		if w.ref.Path == ref.Path {
			t.writes[i].data = data
			t.writes[i].create = w.create || create
			return
		}
	}
	t.writes = append(t.writes, pendingWrite{ref: ref, data: data, create: create})
}

func (t *pointTx) flush() error {
	for _, w := range t.writes {
		var err error
		if w.create {
			err = t.tx.Create(w.ref, w.data)
		} else {
			err = t.tx.Set(w.ref, w.data)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pointTx) GetOrCreateAccount(ctx context.Context, userID string, now time.Time) (*models.PointsAccount, error) {
	ref := t.client.Collection(colAccounts).Doc(userID)
	snap, err := t.tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		account := models.NewPointsAccount(userID, now)
		// 不存在的文档同样被事务读锁覆盖，并发首读会有一方重试
		t.write(ref, newAccountDoc(account), true)
		return account, nil
	}
	if err != nil {
		return nil, err
	}
	var doc accountDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (t *pointTx) SaveAccount(ctx context.Context, account *models.PointsAccount) error {
	t.write(t.client.Collection(colAccounts).Doc(account.UserID), newAccountDoc(account), false)
	return nil
}

func (t *pointTx) TransactionExists(ctx context.Context, userID, source, sourceRef string) (bool, error) {
	q := t.client.Collection(colTransactions).
		Where("userId", "==", userID).
		Where("source", "==", source).
		Where("sourceRef", "==", sourceRef).
		Limit(1)
	snaps, err := t.tx.Documents(q).GetAll()
	if err != nil {
		return false, err
	}
	return len(snaps) > 0, nil
}

func (t *pointTx) AppendTransaction(ctx context.Context, txn *models.PointTransaction) error {
	doc, err := newTransactionDoc(txn)
	if err != nil {
		return err
	}
	t.write(t.client.Collection(colTransactions).Doc(strconv.FormatInt(txn.ID, 10)), doc, true)
	return nil
}

func (t *pointTx) CouponCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := t.tx.Get(t.client.Collection(colCoupons).Doc(code))
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateCoupon 优惠码即文档 ID，Create 在文档已存在时失败
func (t *pointTx) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	t.write(t.client.Collection(colCoupons).Doc(coupon.Code), newCouponDoc(coupon), true)
	return nil
}

func (t *pointTx) GetCouponForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	snap, err := t.tx.Get(t.client.Collection(colCoupons).Doc(code))
	if err != nil {
		return nil, translate(err)
	}
	var doc couponDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (t *pointTx) SaveCoupon(ctx context.Context, coupon *models.Coupon) error {
	t.write(t.client.Collection(colCoupons).Doc(coupon.Code), newCouponDoc(coupon), false)
	return nil
}

func (t *pointTx) CreateRedemption(ctx context.Context, redemption *models.PointRedemption) error {
	ref := t.client.Collection(colRedemptions).Doc(strconv.FormatInt(redemption.ID, 10))
	t.write(ref, newRedemptionDoc(redemption), true)
	return nil
}

func (t *pointTx) CreateBadge(ctx context.Context, badge *models.UserBadge) error {
	ref := t.client.Collection(colBadges).Doc(strconv.FormatInt(badge.ID, 10))
	t.write(ref, badgeDoc{
		ID:        badge.ID,
		UserID:    badge.UserID,
		RewardID:  badge.RewardID,
		Label:     badge.Label,
		CreatedAt: badge.CreatedAt,
	}, true)
	return nil
}

func translate(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return dao.ErrNotFound
	case codes.AlreadyExists:
		return dao.ErrDuplicate
	}
	return err
}

type accountDoc struct {
	UserID    string    `firestore:"userId"`
	Total     int64     `firestore:"total"`
	Tier      string    `firestore:"tier"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newAccountDoc(a *models.PointsAccount) accountDoc {
	return accountDoc{UserID: a.UserID, Total: a.Total, Tier: a.Tier, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
}

func (d accountDoc) model() *models.PointsAccount {
	return &models.PointsAccount{UserID: d.UserID, Total: d.Total, Tier: d.Tier, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

type transactionDoc struct {
	ID         int64                  `firestore:"id"`
	UserID     string                 `firestore:"userId"`
	Amount     int64                  `firestore:"amount"`
	Direction  string                 `firestore:"direction"`
	Source     string                 `firestore:"source"`
	SourceRef  string                 `firestore:"sourceRef,omitempty"`
	Meta       map[string]interface{} `firestore:"meta"`
	TotalAfter int64                  `firestore:"totalAfter"`
	TierAfter  string                 `firestore:"tierAfter"`
	CreatedAt  time.Time              `firestore:"createdAt"`
}

func newTransactionDoc(txn *models.PointTransaction) (transactionDoc, error) {
	meta := map[string]interface{}{}
	if len(txn.Meta) > 0 {
		if err := json.Unmarshal(txn.Meta, &meta); err != nil {
			return transactionDoc{}, err
		}
	}
	direction := directionIncome
	if txn.Amount < 0 {
		direction = directionExpense
	}
	doc := transactionDoc{
		ID:         txn.ID,
		UserID:     txn.UserID,
		Amount:     txn.Amount,
		Direction:  direction,
		Source:     txn.Source,
		Meta:       meta,
		TotalAfter: txn.TotalAfter,
		TierAfter:  txn.TierAfter,
		CreatedAt:  txn.CreatedAt,
	}
	if txn.SourceRef != nil {
		doc.SourceRef = *txn.SourceRef
	}
	return doc, nil
}

func (d transactionDoc) model() (*models.PointTransaction, error) {
	raw, err := json.Marshal(d.Meta)
	if err != nil {
		return nil, err
	}
	txn := &models.PointTransaction{
		ID:         d.ID,
		UserID:     d.UserID,
		Amount:     d.Amount,
		Source:     d.Source,
		Meta:       datatypes.JSON(raw),
		TotalAfter: d.TotalAfter,
		TierAfter:  d.TierAfter,
		CreatedAt:  d.CreatedAt,
	}
	if d.SourceRef != "" {
		ref := d.SourceRef
		txn.SourceRef = &ref
	}
	return txn, nil
}

type redemptionDoc struct {
	ID         int64     `firestore:"id"`
	UserID     string    `firestore:"userId"`
	RewardID   string    `firestore:"rewardId"`
	Label      string    `firestore:"label"`
	Cost       int64     `firestore:"cost"`
	NewTotal   int64     `firestore:"newTotal"`
	CouponCode *string   `firestore:"couponCode"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func newRedemptionDoc(r *models.PointRedemption) redemptionDoc {
	return redemptionDoc{
		ID: r.ID, UserID: r.UserID, RewardID: r.RewardID, Label: r.Label,
		Cost: r.Cost, NewTotal: r.NewTotal, CouponCode: r.CouponCode, CreatedAt: r.CreatedAt,
	}
}

func (d redemptionDoc) model() models.PointRedemption {
	return models.PointRedemption{
		ID: d.ID, UserID: d.UserID, RewardID: d.RewardID, Label: d.Label,
		Cost: d.Cost, NewTotal: d.NewTotal, CouponCode: d.CouponCode, CreatedAt: d.CreatedAt,
	}
}

type couponDoc struct {
	ID            int64     `firestore:"id"`
	Code          string    `firestore:"code"`
	DiscountType  string    `firestore:"discountType"`
	DiscountValue int64     `firestore:"discountValue"`
	UserID        string    `firestore:"userId"`
	MaxUses       int       `firestore:"maxUses"`
	UsedCount     int       `firestore:"usedCount"`
	ExpiresAt     time.Time `firestore:"expiresAt"`
	Status        string    `firestore:"status"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func newCouponDoc(c *models.Coupon) couponDoc {
	return couponDoc{
		ID: c.ID, Code: c.Code, DiscountType: c.DiscountType, DiscountValue: c.DiscountValue,
		UserID: c.UserID, MaxUses: c.MaxUses, UsedCount: c.UsedCount, ExpiresAt: c.ExpiresAt,
		Status: c.Status, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func (d couponDoc) model() *models.Coupon {
	return &models.Coupon{
		ID: d.ID, Code: d.Code, DiscountType: d.DiscountType, DiscountValue: d.DiscountValue,
		UserID: d.UserID, MaxUses: d.MaxUses, UsedCount: d.UsedCount, ExpiresAt: d.ExpiresAt,
		Status: d.Status, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

type badgeDoc struct {
	ID        int64     `firestore:"id"`
	UserID    string    `firestore:"userId"`
	RewardID  string    `firestore:"rewardId"`
	Label     string    `firestore:"label"`
	CreatedAt time.Time `firestore:"createdAt"`
}
