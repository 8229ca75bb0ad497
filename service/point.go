package service

import (
	"Homezy/config"
	"Homezy/dao"
	"Homezy/dao/cache"
	"Homezy/models"
	"Homezy/pkg/clock"
	"Homezy/pkg/log"
	"Homezy/pkg/snowflake"
	"Homezy/pkg/utils"
	"Homezy/types"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	maxCouponAttempts  = 5
	accountLoadTimeout = 5 * time.Second
)

// PointDelta 一次积分变动，Amount 为正表示入账，为负表示扣减
type PointDelta struct {
	UserID    string
	Amount    int64
	Source    string
	SourceRef string // 业务单号，非空时同一 (user, source, ref) 只生效一次
	Meta      models.Meta
}

type PointService struct {
	config *config.Config
	store  dao.PointStore
	cache  *cache.AccountCache
	events EventPublisher
	clock  clock.Clock
	group  singleflight.Group
}

var _ IPointService = (*PointService)(nil)

type IPointService interface {
	GetAccount(ctx context.Context, userID string) (*models.PointsAccount, error)
	AccountDashboard(ctx context.Context, userID string) (*types.PointsAccountResp, error)
	ApplyDelta(ctx context.Context, delta PointDelta) (int64, error)
	GrantBatch(ctx context.Context, deltas []PointDelta) ([]types.GrantResult, error)
	Redeem(ctx context.Context, userID, rewardID string) (*types.RedeemResult, error)

	// 查询
	ListRecords(ctx context.Context, userID string, action string, cursor int64, limit int) (*types.ListPointsRecord, error)
	ListRedemptions(ctx context.Context, userID string, cursor int64, limit int) (*types.ListRedemptions, error)
}

func NewPointService(conf *config.Config, store dao.PointStore, accountCache *cache.AccountCache, events EventPublisher, clk clock.Clock) *PointService {
	return &PointService{
		config: conf,
		store:  store,
		cache:  accountCache,
		events: events,
		clock:  clk,
	}
}

// GetAccount 读取账户，不存在时开户。缓存未命中时同一用户的并发请求合并为一次存储访问
func (p *PointService) GetAccount(ctx context.Context, userID string) (*models.PointsAccount, error) {
	if userID == "" {
		return nil, ErrInvalidDelta
	}

	cached, err := p.cache.Get(ctx, userID)
	if err != nil {
		log.L.Warn("get account cache", zap.String("user_id", userID), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	// 合并后的存储访问不跟随任一调用方取消，各调用方只按自己的 ctx 等待
	ch := p.group.DoChan(userID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), accountLoadTimeout)
		defer cancel()

		var account *models.PointsAccount
		err := p.store.Transaction(loadCtx, func(tx dao.PointTx) error {
			var err error
			account, err = tx.GetOrCreateAccount(loadCtx, userID, p.clock.Now())
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("get or create account: %w", err)
		}
		if err := p.cache.Set(loadCtx, account); err != nil {
			log.L.Warn("set account cache", zap.String("user_id", userID), zap.Error(err))
		}
		return account, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	v := res.Val

	// 合并请求共享同一个结果，返回副本
	account := *v.(*models.PointsAccount)
	return &account, nil
}

func (p *PointService) AccountDashboard(ctx context.Context, userID string) (*types.PointsAccountResp, error) {
	account, err := p.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &types.PointsAccountResp{
		UserID:    account.UserID,
		Total:     account.Total,
		Tier:      types.NewTierResp(models.TierForPoints(account.Total)),
		UpdatedAt: account.UpdatedAt.Format(types.TimeLayout),
	}
	if next, ok := models.NextTier(account.Total); ok {
		tier := types.NewTierResp(next)
		resp.NextTier = &tier
		resp.PointsToNext = next.Min - account.Total
	}
	return resp, nil
}

// ApplyDelta 记一笔积分变动并返回变动后的余额。余额不会低于 0，Amount 为 0 时只读不写
func (p *PointService) ApplyDelta(ctx context.Context, delta PointDelta) (int64, error) {
	if delta.UserID == "" {
		return 0, fmt.Errorf("%w: empty user id", ErrInvalidDelta)
	}
	if !models.IsKnownSource(delta.Source) {
		return 0, fmt.Errorf("%w: unknown source %q", ErrInvalidDelta, delta.Source)
	}
	if err := models.ValidateMeta(delta.Source, delta.Meta); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDelta, err)
	}

	if delta.Amount == 0 {
		account, err := p.store.GetAccount(ctx, delta.UserID)
		if errors.Is(err, dao.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("get account: %w", err)
		}
		return account.Total, nil
	}

	meta, err := models.EncodeMeta(delta.Meta)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDelta, err)
	}

	var (
		txn        *models.PointTransaction
		tierBefore string
	)
	err = p.store.Transaction(ctx, func(tx dao.PointTx) error {
		now := p.clock.Now()
		// 先锁账户再查重，同一用户的并发请求在这里串行
		account, err := tx.GetOrCreateAccount(ctx, delta.UserID, now)
		if err != nil {
			return err
		}
		if delta.SourceRef != "" {
			exists, err := tx.TransactionExists(ctx, delta.UserID, delta.Source, delta.SourceRef)
			if err != nil {
				return err
			}
			if exists {
				return ErrAlreadyApplied
			}
		}

		tierBefore = account.Tier
		txn, err = p.applyLocked(ctx, tx, account, delta.Amount, delta.Source, delta.SourceRef, meta, now)
		return err
	})
	if errors.Is(err, dao.ErrDuplicate) {
		return 0, ErrAlreadyApplied
	}
	if err != nil {
		return 0, p.translateTxErr("apply point delta", err)
	}

	p.afterCommit(ctx, txn, tierBefore)
	return txn.TotalAfter, nil
}

// applyLocked 在已锁定的账户上落一笔变动：更新余额与等级，追加流水
func (p *PointService) applyLocked(ctx context.Context, tx dao.PointTx, account *models.PointsAccount,
	amount int64, source, sourceRef string, meta []byte, now time.Time) (*models.PointTransaction, error) {

	account.Total = max(0, account.Total+amount)
	account.Tier = models.TierForPoints(account.Total).ID
	account.UpdatedAt = now
	if err := tx.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	txn := &models.PointTransaction{
		ID:         snowflake.GenID(),
		UserID:     account.UserID,
		Amount:     amount,
		Source:     source,
		Meta:       meta,
		TotalAfter: account.Total,
		TierAfter:  account.Tier,
		CreatedAt:  now,
	}
	if sourceRef != "" {
		txn.SourceRef = &sourceRef
	}
	if err := tx.AppendTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// GrantBatch 后台批量发放，逐条独立提交，单条失败不影响其他
func (p *PointService) GrantBatch(ctx context.Context, deltas []PointDelta) ([]types.GrantResult, error) {
	if len(deltas) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidDelta)
	}
	if limit := p.config.Points.MaxBatchGrants; limit > 0 && len(deltas) > limit {
		return nil, fmt.Errorf("%w: batch exceeds %d grants", ErrInvalidDelta, limit)
	}

	results := make([]types.GrantResult, len(deltas))
	wp := pool.New().WithMaxGoroutines(8)
	for i, delta := range deltas {
		wp.Go(func() {
			r := types.GrantResult{Index: i, UserID: delta.UserID}
			total, err := p.ApplyDelta(ctx, delta)
			if err != nil {
				r.Error = err.Error()
			} else {
				r.NewTotal = total
			}
			results[i] = r
		})
	}
	wp.Wait()
	return results, nil
}

// Redeem 兑换奖励。扣分、发券或徽章、兑换记录、流水在同一个事务内，任一步失败整体回滚
func (p *PointService) Redeem(ctx context.Context, userID, rewardID string) (*types.RedeemResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidDelta)
	}
	reward, ok := models.RewardByID(rewardID)
	if !ok {
		redemptionsTotal.WithLabelValues("unknown", "not_found").Inc()
		return nil, ErrRewardNotFound
	}

	var (
		txn        *models.PointTransaction
		redemption *models.PointRedemption
		coupon     *models.Coupon
		tierBefore string
	)
	err := p.store.Transaction(ctx, func(tx dao.PointTx) error {
		// Firestore 争用时会重跑，每次都从干净状态开始
		coupon = nil
		now := p.clock.Now()

		account, err := tx.GetOrCreateAccount(ctx, userID, now)
		if err != nil {
			return err
		}
		if account.Total < reward.Cost {
			return ErrInsufficientBalance
		}
		tierBefore = account.Tier

		if reward.IsCoupon() {
			coupon, err = p.issueCoupon(ctx, tx, userID, reward, now)
			if err != nil {
				return err
			}
		} else {
			err = tx.CreateBadge(ctx, &models.UserBadge{
				ID:        snowflake.GenID(),
				UserID:    userID,
				RewardID:  reward.ID,
				Label:     reward.Label,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
		}

		var code *string
		if coupon != nil {
			code = &coupon.Code
		}
		meta, err := models.EncodeMeta(models.RedeemMeta{RewardID: reward.ID, Coupon: code})
		if err != nil {
			return err
		}
		txn, err = p.applyLocked(ctx, tx, account, -reward.Cost, models.SourceRedeem, "", meta, now)
		if err != nil {
			return err
		}

		redemption = &models.PointRedemption{
			ID:         snowflake.GenID(),
			UserID:     userID,
			RewardID:   reward.ID,
			Label:      reward.Label,
			Cost:       reward.Cost,
			NewTotal:   txn.TotalAfter,
			CouponCode: code,
			CreatedAt:  now,
		}
		return tx.CreateRedemption(ctx, redemption)
	})
	if err != nil {
		result := "error"
		if errors.Is(err, ErrInsufficientBalance) {
			result = "insufficient"
		}
		redemptionsTotal.WithLabelValues(reward.ID, result).Inc()
		return nil, p.translateTxErr("redeem reward", err)
	}

	redemptionsTotal.WithLabelValues(reward.ID, "ok").Inc()
	p.afterCommit(ctx, txn, tierBefore)

	return &types.RedeemResult{
		NewTotal:     txn.TotalAfter,
		Tier:         txn.TierAfter,
		RedemptionID: redemption.ID,
		Coupon:       types.NewCouponResp(coupon),
	}, nil
}

// issueCoupon 生成一次性优惠券，优惠码冲突时重新生成
func (p *PointService) issueCoupon(ctx context.Context, tx dao.PointTx, userID string, reward models.Reward, now time.Time) (*models.Coupon, error) {
	for i := 0; i < maxCouponAttempts; i++ {
		code, err := utils.CouponCode(p.config.Points.CouponPrefix, p.config.Points.CouponSalt, reward.Value)
		if err != nil {
			return nil, err
		}
		exists, err := tx.CouponCodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		coupon := &models.Coupon{
			ID:            snowflake.GenID(),
			Code:          code,
			DiscountType:  reward.DiscountType,
			DiscountValue: reward.Value,
			UserID:        userID,
			MaxUses:       1,
			UsedCount:     0,
			ExpiresAt:     now.Add(p.config.Points.CouponTTL()),
			Status:        models.CouponStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.CreateCoupon(ctx, coupon); err != nil {
			return nil, err
		}
		return coupon, nil
	}
	return nil, ErrCouponCodeExhausted
}

func (p *PointService) ListRecords(ctx context.Context, userID string, action string, cursor int64, limit int) (*types.ListPointsRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	logs, err := p.store.ListTransactions(ctx, userID, action, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list point transactions: %w", err)
	}

	resp := &types.ListPointsRecord{
		Records: make([]types.PointRecord, 0, len(logs)),
		HasMore: false,
	}
	if len(logs) > limit {
		resp.HasMore = true
		logs = logs[:limit]
		resp.NextCursor = logs[len(logs)-1].ID
	}

	for _, l := range logs {
		orderType := "INCOME"
		if l.Amount < 0 {
			orderType = "EXPENSE"
		}
		meta, err := models.DecodeMeta(l.Source, l.Meta)
		if err != nil {
			// 历史数据格式不对时不影响列表展示
			log.L.Warn("decode point meta", zap.Int64("id", l.ID), zap.Error(err))
			meta = nil
		}
		record := types.PointRecord{
			ID:         l.ID,
			Amount:     l.Amount,
			TotalAfter: l.TotalAfter,
			TierAfter:  l.TierAfter,
			Source:     l.Source,
			OrderType:  orderType,
			Meta:       meta,
			CreatedAt:  l.CreatedAt.Format(types.TimeLayout),
		}
		if l.SourceRef != nil {
			record.SourceRef = *l.SourceRef
		}
		resp.Records = append(resp.Records, record)
	}
	return resp, nil
}

func (p *PointService) ListRedemptions(ctx context.Context, userID string, cursor int64, limit int) (*types.ListRedemptions, error) {
	if limit <= 0 {
		limit = 10
	}
	list, err := p.store.ListRedemptions(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}

	resp := &types.ListRedemptions{
		Records: make([]types.RedemptionItem, 0, len(list)),
	}
	if len(list) > limit {
		resp.HasMore = true
		list = list[:limit]
		resp.NextCursor = list[len(list)-1].ID
	}
	for _, r := range list {
		resp.Records = append(resp.Records, types.RedemptionItem{
			ID:         r.ID,
			RewardID:   r.RewardID,
			Label:      r.Label,
			Cost:       r.Cost,
			NewTotal:   r.NewTotal,
			CouponCode: r.CouponCode,
			CreatedAt:  r.CreatedAt.Format(types.TimeLayout),
		})
	}
	return resp, nil
}

// afterCommit 事务提交后的副作用，失败只记日志，不影响已提交的结果
func (p *PointService) afterCommit(ctx context.Context, txn *models.PointTransaction, tierBefore string) {
	if err := p.cache.Del(ctx, txn.UserID); err != nil {
		log.L.Warn("invalidate account cache", zap.String("user_id", txn.UserID), zap.Error(err))
	}
	recordDelta(txn.Source, txn.Amount)
	if tierBefore != txn.TierAfter {
		log.L.Info("tier changed",
			zap.String("user_id", txn.UserID),
			zap.String("from", tierBefore),
			zap.String("to", txn.TierAfter),
		)
	}
	p.publish(ctx, newPointsChangedEvent(txn, tierBefore))
}

func (p *PointService) translateTxErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrAlreadyApplied),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrCouponCodeExhausted),
		errors.Is(err, ErrInvalidDelta):
		return err
	}
	log.L.Error(op, zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
