package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// InboxSize is the number of deliveries kept per device for clients that were offline.
const InboxSize = 50

// RedisSender publishes deliveries on a per-device channel and keeps the latest ones in an
// inbox list.
type RedisSender struct {
	client *redis.Client
	prefix string
}

func NewRedisSender(client *redis.Client, prefix string) *RedisSender {
	return &RedisSender{client: client, prefix: prefix}
}

func (s *RedisSender) Channel(target string) string {
	return s.prefix + target
}

func (s *RedisSender) InboxKey(target string) string {
	return s.prefix + "inbox:" + target
}

func (s *RedisSender) Send(ctx context.Context, delivery Delivery) error {
	payload, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to encode delivery: %w", err)
	}

	inbox := s.InboxKey(delivery.Target)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, s.Channel(delivery.Target), payload)
		pipe.LPush(ctx, inbox, payload)
		pipe.LTrim(ctx, inbox, 0, InboxSize-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push notification to redis: %w", err)
	}
	log.Debugf("Notification %s pushed to %s", delivery.ID, delivery.Target)
	return nil
}

// Inbox returns the stored deliveries of target, newest first.
func (s *RedisSender) Inbox(ctx context.Context, target string) ([]Delivery, error) {
	values, err := s.client.LRange(ctx, s.InboxKey(target), 0, InboxSize-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox of %s: %w", target, err)
	}
	deliveries := make([]Delivery, 0, len(values))
	for _, value := range values {
		var d Delivery
		if err := json.Unmarshal([]byte(value), &d); err != nil {
			log.Warnf("skipping malformed inbox entry of %s: %v", target, err)
			continue
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

// LogSender only logs deliveries. It is used when no Redis server is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, delivery Delivery) error {
	log.WithFields(log.Fields{
		"target": delivery.Target,
		"event":  delivery.Content.Data.EventUID,
		"fireAt": delivery.FireAt,
	}).Infof("%s: %s", delivery.Content.Title, delivery.Content.Body)
	return nil
}
