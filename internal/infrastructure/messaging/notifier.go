// Package messaging はイベント通知を watermill のトピックへ配信する
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
)

const (
	metadataEventID = "event_id"
	metadataKind    = "kind"
)

// NewRedisStreamPublisher は Redis Streams へ書き込む Publisher を作成する
func NewRedisStreamPublisher(client *redis.Client, log watermill.LoggerAdapter) (message.Publisher, error) {
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: client},
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("Publisherの作成に失敗: %w", err)
	}
	return publisher, nil
}

// PublisherNotifier は通知を JSON にして <prefix><kind> のトピックへ発行する
type PublisherNotifier struct {
	publisher   message.Publisher
	topicPrefix string
}

// NewPublisherNotifier は PublisherNotifier を作成する
func NewPublisherNotifier(publisher message.Publisher, topicPrefix string) *PublisherNotifier {
	return &PublisherNotifier{publisher: publisher, topicPrefix: topicPrefix}
}

// Topic は通知種別に対応するトピック名を返す
func (n *PublisherNotifier) Topic(kind application.NotificationKind) string {
	return n.topicPrefix + string(kind)
}

func (n *PublisherNotifier) Notify(ctx context.Context, notification application.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("通知の変換に失敗: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataEventID, notification.EventID)
	msg.Metadata.Set(metadataKind, string(notification.Kind))
	msg.SetContext(ctx)

	topic := n.Topic(notification.Kind)
	if err := n.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("通知の発行に失敗 (topic=%s): %w", topic, err)
	}
	return nil
}

// Close は下位の Publisher を閉じる
func (n *PublisherNotifier) Close() error {
	return n.publisher.Close()
}

// LogNotifier は通知をログに出力するだけの Notifier。配信先がない環境で使う
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n application.Notification) error {
	logger.ForEvent(n.EventID).Info("通知",
		zap.String("kind", string(n.Kind)),
		zap.String("title", n.Title),
		zap.Int("recipients", len(n.Recipients)),
		zap.Int("winners", len(n.Winners)),
	)
	return nil
}

var (
	_ application.Notifier = (*PublisherNotifier)(nil)
	_ application.Notifier = LogNotifier{}
)
