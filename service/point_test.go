package service

import (
	"Homezy/config"
	"Homezy/dao"
	"Homezy/models"
	"Homezy/pkg/clock"
	"Homezy/pkg/database/dbtest"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordedEvent struct {
	topic string
	key   string
	body  []byte
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, topic, key string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{topic: topic, key: key, body: body})
	return r.err
}

func (r *recordingPublisher) list() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

type testEnv struct {
	svc    *PointService
	store  dao.PointStore
	clock  *clock.FakeClock
	events *recordingPublisher
	conf   *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conf, err := config.Parse([]byte("jwt:\n  secret: test-secret\n"))
	require.NoError(t, err)

	env := &testEnv{
		store:  dao.NewPoint(dbtest.Open(t)),
		clock:  clock.NewFakeClock(testNow),
		events: &recordingPublisher{},
		conf:   conf,
	}
	env.svc = NewPointService(conf, env.store, nil, env.events, env.clock)
	return env
}

func (e *testEnv) countRows(t *testing.T, userID string) (txns int, redemptions int) {
	t.Helper()
	ctx := context.Background()
	list, err := e.store.ListTransactions(ctx, userID, dao.ActionAll, 0, 1000)
	require.NoError(t, err)
	reds, err := e.store.ListRedemptions(ctx, userID, 0, 1000)
	require.NoError(t, err)
	return len(list), len(reds)
}

func TestGetAccount_CreatesOnFirstRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.svc.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", account.UserID)
	assert.Equal(t, int64(0), account.Total)
	assert.Equal(t, models.TierBronze, account.Tier)

	again, err := env.svc.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, account.Total, again.Total)

	stored, err := env.store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Total)
}

// blockingStore 让事务在 release 关闭前挂起
type blockingStore struct {
	dao.PointStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) Transaction(ctx context.Context, fn func(tx dao.PointTx) error) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.PointStore.Transaction(ctx, fn)
}

func TestGetAccount_CallerCancelDoesNotFailOthers(t *testing.T) {
	env := newTestEnv(t)
	store := &blockingStore{PointStore: env.store, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewPointService(env.conf, store, nil, nil, env.clock)

	cancelCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetAccount(cancelCtx, "u1")
		firstErr <- err
	}()
	<-store.entered

	type result struct {
		account *models.PointsAccount
		err     error
	}
	second := make(chan result, 1)
	go func() {
		account, err := svc.GetAccount(context.Background(), "u1")
		second <- result{account, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(store.release)
	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, "u1", r.account.UserID)

	_, err := env.store.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
}

func TestGetAccount_EmptyUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GetAccount(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidDelta)
}

func TestApplyDelta_Scenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	total, err := env.svc.ApplyDelta(ctx, PointDelta{
		UserID: "u1", Amount: 100, Source: models.SourceBooking,
		SourceRef: "b-1", Meta: models.BookingMeta{BookingID: "b-1", ListingName: "Lake House"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)

	total, err = env.svc.ApplyDelta(ctx, PointDelta{
		UserID: "u1", Amount: 450, Source: models.SourceReviewReceived,
		SourceRef: "r-1", Meta: models.ReviewMeta{ReviewID: "r-1", Rating: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(550), total)

	account, err := env.svc.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.TierSilver, account.Tier)

	result, err := env.svc.Redeem(ctx, "u1", "coupon_5_off")
	require.NoError(t, err)
	assert.Equal(t, int64(450), result.NewTotal)
	assert.Equal(t, models.TierBronze, result.Tier)

	account, err = env.svc.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(450), account.Total)
	assert.Equal(t, models.TierBronze, account.Tier)

	records, err := env.svc.ListRecords(ctx, "u1", dao.ActionAll, 0, 10)
	require.NoError(t, err)
	require.Len(t, records.Records, 3)
	assert.Equal(t, []int64{450, 550, 100}, []int64{
		records.Records[0].TotalAfter, records.Records[1].TotalAfter, records.Records[2].TotalAfter,
	})
	assert.Equal(t, "EXPENSE", records.Records[0].OrderType)
	assert.Equal(t, models.SourceRedeem, records.Records[0].Source)
}

func TestApplyDelta_ZeroIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	total, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 0, Source: models.SourceManual})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	// 不会开户
	_, err = env.store.GetAccount(ctx, "u1")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	_, err = env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 70, Source: models.SourceManual})
	require.NoError(t, err)
	total, err = env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 0, Source: models.SourceManual})
	require.NoError(t, err)
	assert.Equal(t, int64(70), total)

	txns, _ := env.countRows(t, "u1")
	assert.Equal(t, 1, txns)
	assert.Len(t, env.events.list(), 1)
}

func TestApplyDelta_ClampsAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	total, err := env.svc.ApplyDelta(ctx, PointDelta{
		UserID: "u1", Amount: -50, Source: models.SourceReviewDeleted,
		Meta: models.ReviewMeta{ReviewID: "r-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	total, err = env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 30, Source: models.SourceManual})
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)

	records, err := env.svc.ListRecords(ctx, "u1", dao.ActionExpense, 0, 10)
	require.NoError(t, err)
	require.Len(t, records.Records, 1)
	assert.Equal(t, int64(-50), records.Records[0].Amount)
	assert.Equal(t, int64(0), records.Records[0].TotalAfter)
}

func TestApplyDelta_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []PointDelta{
		{UserID: "", Amount: 10, Source: models.SourceManual},
		{UserID: "u1", Amount: 10, Source: "lottery"},
		{UserID: "u1", Amount: 10, Source: models.SourceBooking, Meta: models.ReviewMeta{ReviewID: "r"}},
	}
	for _, c := range cases {
		_, err := env.svc.ApplyDelta(ctx, c)
		assert.ErrorIs(t, err, ErrInvalidDelta)
	}
	txns, _ := env.countRows(t, "u1")
	assert.Zero(t, txns)
}

func TestApplyDelta_IdempotentSourceRef(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	delta := PointDelta{UserID: "u1", Amount: 40, Source: models.SourceServiceFee, SourceRef: "pay-1"}

	total, err := env.svc.ApplyDelta(ctx, delta)
	require.NoError(t, err)
	assert.Equal(t, int64(40), total)

	_, err = env.svc.ApplyDelta(ctx, delta)
	assert.ErrorIs(t, err, ErrAlreadyApplied)

	// 同一单号换一个来源不算重复
	other := delta
	other.Source = models.SourceManual
	total, err = env.svc.ApplyDelta(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(80), total)

	txns, _ := env.countRows(t, "u1")
	assert.Equal(t, 2, txns)
}

func TestApplyDelta_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 10, Source: models.SourceManual})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	account, err := env.store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), account.Total)

	txns, _ := env.countRows(t, "u1")
	assert.Equal(t, 20, txns)
}

func TestApplyDelta_PublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 600, Source: models.SourceManual})
	require.NoError(t, err)

	events := env.events.list()
	require.Len(t, events, 1)
	assert.Equal(t, env.conf.Points.EventTopic, events[0].topic)
	assert.Equal(t, "u1", events[0].key)

	var event PointsChangedEvent
	require.NoError(t, json.Unmarshal(events[0].body, &event))
	assert.Equal(t, int64(600), event.TotalAfter)
	assert.Equal(t, models.TierBronze, event.TierBefore)
	assert.Equal(t, models.TierSilver, event.TierAfter)
}

func TestApplyDelta_PublishFailureKeepsCommit(t *testing.T) {
	env := newTestEnv(t)
	env.events.err = errors.New("broker down")
	ctx := context.Background()

	total, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 25, Source: models.SourceManual})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)

	account, err := env.store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), account.Total)
}

func TestRedeem_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 99, Source: models.SourceManual})
	require.NoError(t, err)

	_, err = env.svc.Redeem(ctx, "u1", "coupon_5_off")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	account, err := env.store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(99), account.Total)

	txns, redemptions := env.countRows(t, "u1")
	assert.Equal(t, 1, txns)
	assert.Zero(t, redemptions)
}

func TestRedeem_UnknownReward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Redeem(ctx, "u1", "free_house")
	assert.ErrorIs(t, err, ErrRewardNotFound)

	// 不会开户
	_, err = env.store.GetAccount(ctx, "u1")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestRedeem_Coupon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 1000, Source: models.SourceManual})
	require.NoError(t, err)

	result, err := env.svc.Redeem(ctx, "u1", "coupon_10_pct")
	require.NoError(t, err)
	assert.Equal(t, int64(700), result.NewTotal)
	require.NotNil(t, result.Coupon)
	assert.Regexp(t, regexp.MustCompile(`^HOMEZY10-[A-Z2-9]{6}$`), result.Coupon.Code)
	assert.Equal(t, models.DiscountPercentage, result.Coupon.DiscountType)
	assert.Equal(t, int64(10), result.Coupon.DiscountValue)
	assert.Equal(t, 1, result.Coupon.MaxUses)
	assert.Equal(t, 0, result.Coupon.UsedCount)
	assert.Equal(t, models.CouponStatusActive, result.Coupon.Status)

	coupon, err := env.store.GetCoupon(ctx, result.Coupon.Code)
	require.NoError(t, err)
	assert.Equal(t, "u1", coupon.UserID)
	assert.Equal(t, 30*24*time.Hour, coupon.ExpiresAt.Sub(testNow))

	txns, redemptions := env.countRows(t, "u1")
	assert.Equal(t, 2, txns)
	assert.Equal(t, 1, redemptions)

	reds, err := env.svc.ListRedemptions(ctx, "u1", 0, 10)
	require.NoError(t, err)
	require.Len(t, reds.Records, 1)
	assert.Equal(t, result.RedemptionID, reds.Records[0].ID)
	require.NotNil(t, reds.Records[0].CouponCode)
	assert.Equal(t, result.Coupon.Code, *reds.Records[0].CouponCode)
	assert.Equal(t, int64(700), reds.Records[0].NewTotal)

	records, err := env.svc.ListRecords(ctx, "u1", dao.ActionExpense, 0, 10)
	require.NoError(t, err)
	require.Len(t, records.Records, 1)
	assert.Equal(t, int64(-300), records.Records[0].Amount)
	meta, ok := records.Records[0].Meta.(*models.RedeemMeta)
	require.True(t, ok)
	assert.Equal(t, "coupon_10_pct", meta.RewardID)
	require.NotNil(t, meta.Coupon)
	assert.Equal(t, result.Coupon.Code, *meta.Coupon)
}

func TestRedeem_Badge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 1200, Source: models.SourceManual})
	require.NoError(t, err)

	result, err := env.svc.Redeem(ctx, "u1", "badge_super_guest")
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.NewTotal)
	assert.Nil(t, result.Coupon)

	reds, err := env.svc.ListRedemptions(ctx, "u1", 0, 10)
	require.NoError(t, err)
	require.Len(t, reds.Records, 1)
	assert.Nil(t, reds.Records[0].CouponCode)

	records, err := env.svc.ListRecords(ctx, "u1", dao.ActionExpense, 0, 10)
	require.NoError(t, err)
	require.Len(t, records.Records, 1)
	meta, ok := records.Records[0].Meta.(*models.RedeemMeta)
	require.True(t, ok)
	assert.Nil(t, meta.Coupon)
}

var errBoom = errors.New("boom")

// failingStore 在事务内的某一步注入失败
type failingStore struct {
	dao.PointStore
}

func (f failingStore) Transaction(ctx context.Context, fn func(tx dao.PointTx) error) error {
	return f.PointStore.Transaction(ctx, func(tx dao.PointTx) error {
		return fn(failingTx{PointTx: tx})
	})
}

type failingTx struct {
	dao.PointTx
}

func (failingTx) CreateRedemption(ctx context.Context, redemption *models.PointRedemption) error {
	return errBoom
}

func TestRedeem_RollbackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 500, Source: models.SourceManual})
	require.NoError(t, err)

	svc := NewPointService(env.conf, failingStore{PointStore: env.store}, nil, nil, env.clock)
	_, err = svc.Redeem(ctx, "u1", "coupon_5_off")
	assert.ErrorIs(t, err, errBoom)

	account, err := env.store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Total)
	assert.Equal(t, models.TierSilver, account.Tier)

	txns, redemptions := env.countRows(t, "u1")
	assert.Equal(t, 1, txns)
	assert.Zero(t, redemptions)
}

func TestAccountDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 1600, Source: models.SourceManual})
	require.NoError(t, err)

	resp, err := env.svc.AccountDashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1600), resp.Total)
	assert.Equal(t, models.TierGold, resp.Tier.ID)
	assert.Equal(t, "1.25", resp.Tier.Multiplier)
	require.NotNil(t, resp.NextTier)
	assert.Equal(t, models.TierPlatinum, resp.NextTier.ID)
	assert.Equal(t, int64(3400), resp.PointsToNext)

	_, err = env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 5000, Source: models.SourceManual})
	require.NoError(t, err)
	resp, err = env.svc.AccountDashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, resp.NextTier)
	assert.Zero(t, resp.PointsToNext)
}

func TestListRecords_Pagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := env.svc.ApplyDelta(ctx, PointDelta{UserID: "u1", Amount: 10, Source: models.SourceManual})
		require.NoError(t, err)
	}

	page1, err := env.svc.ListRecords(ctx, "u1", dao.ActionAll, 0, 2)
	require.NoError(t, err)
	require.Len(t, page1.Records, 2)
	assert.True(t, page1.HasMore)
	assert.Equal(t, page1.Records[1].ID, page1.NextCursor)
	assert.Equal(t, int64(50), page1.Records[0].TotalAfter)

	page2, err := env.svc.ListRecords(ctx, "u1", dao.ActionAll, page1.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Records, 2)
	assert.True(t, page2.HasMore)

	page3, err := env.svc.ListRecords(ctx, "u1", dao.ActionAll, page2.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page3.Records, 1)
	assert.False(t, page3.HasMore)
	assert.Equal(t, int64(10), page3.Records[0].TotalAfter)
}

func TestGrantBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	results, err := env.svc.GrantBatch(ctx, []PointDelta{
		{UserID: "u1", Amount: 100, Source: models.SourceManual, SourceRef: "promo-1"},
		{UserID: "u2", Amount: 200, Source: models.SourceManual, SourceRef: "promo-1"},
		{UserID: "u1", Amount: 100, Source: models.SourceManual, SourceRef: "promo-1"},
		{UserID: "u3", Amount: 10, Source: "lottery"},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
	assert.Empty(t, results[1].Error)
	assert.Equal(t, int64(200), results[1].NewTotal)
	assert.NotEmpty(t, results[3].Error)

	// u1 的两条只有一条生效
	failed := 0
	for _, r := range results[:3] {
		if r.UserID == "u1" && r.Error != "" {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	account, err := env.store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.Total)
}

func TestGrantBatch_Limits(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GrantBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidDelta)

	env.conf.Points.MaxBatchGrants = 1
	_, err = env.svc.GrantBatch(context.Background(), []PointDelta{
		{UserID: "u1", Amount: 1, Source: models.SourceManual},
		{UserID: "u2", Amount: 1, Source: models.SourceManual},
	})
	assert.ErrorIs(t, err, ErrInvalidDelta)
}
