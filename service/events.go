package service

import (
	"Homezy/models"
	"Homezy/pkg/log"
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// EventPublisher 积分变动事件的下游投递（RocketMQ），为 nil 时不投递
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
}

type PointsChangedEvent struct {
	TransactionID int64     `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Amount        int64     `json:"amount"`
	Source        string    `json:"source"`
	TotalAfter    int64     `json:"total_after"`
	TierAfter     string    `json:"tier_after"`
	TierBefore    string    `json:"tier_before"`
	CreatedAt     time.Time `json:"created_at"`
}

func newPointsChangedEvent(txn *models.PointTransaction, tierBefore string) PointsChangedEvent {
	return PointsChangedEvent{
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		Amount:        txn.Amount,
		Source:        txn.Source,
		TotalAfter:    txn.TotalAfter,
		TierAfter:     txn.TierAfter,
		TierBefore:    tierBefore,
		CreatedAt:     txn.CreatedAt,
	}
}

// publish 事务已提交，投递失败只记日志
func (p *PointService) publish(ctx context.Context, event PointsChangedEvent) {
	if p.events == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.L.Error("marshal points event", zap.Error(err))
		return
	}
	if err := p.events.Publish(ctx, p.config.Points.EventTopic, event.UserID, body); err != nil {
		log.L.Warn("publish points event failed",
			zap.String("user_id", event.UserID),
			zap.Int64("transaction_id", event.TransactionID),
			zap.Error(err),
		)
	}
}
