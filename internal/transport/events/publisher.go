// Package events публикует события изменения статуса выводов средств.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultChannel = "withdrawal_events"

// RedisPublisher отправляет события в канал redis pub/sub в формате JSON.
type RedisPublisher struct {
	rdb     redis.UniversalClient
	channel string
	l       *logrus.Entry
}

func NewRedisPublisher(rdb redis.UniversalClient, channel string, l *logrus.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		l: l.WithFields(logrus.Fields{
			"component": "events",
			"module":    "redis_publisher",
		}),
	}
}

func (p *RedisPublisher) PublishWithdrawalEvent(ctx context.Context, event domain.WithdrawalEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal withdrawal event: %w", err)
	}

	receivers, err := p.rdb.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish withdrawal event to %s: %w", p.channel, err)
	}

	p.l.WithFields(logrus.Fields{
		"event":         event.Type,
		"withdrawal_id": event.WithdrawalID,
		"receivers":     receivers,
	}).Debug("withdrawal event published")
	return nil
}

// NopPublisher только пишет события в лог. Используется, когда redis не настроен.
type NopPublisher struct {
	l *logrus.Entry
}

func NewNopPublisher(l *logrus.Logger) *NopPublisher {
	return &NopPublisher{l: l.WithFields(logrus.Fields{
		"component": "events",
		"module":    "nop_publisher",
	})}
}

func (p *NopPublisher) PublishWithdrawalEvent(_ context.Context, event domain.WithdrawalEvent) error {
	p.l.WithFields(logrus.Fields{
		"event":         event.Type,
		"withdrawal_id": event.WithdrawalID,
		"status":        event.Status,
	}).Debug("withdrawal event")
	return nil
}
