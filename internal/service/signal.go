package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	meridian "github.com/meridian-social/meridian"
)

// SignalService routes notification events emitted by the indexing engine.
// Events are published to a per-recipient channel; delivery to connected
// clients happens through Realtime subscriptions.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func notifChannel(did string) string {
	return "notif:" + did
}

func (s *SignalService) Publish(ctx context.Context, event meridian.NotificationEvent) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, notifChannel(event.Recipient), jsonstr).Err()
}

func (s *SignalService) PublishAll(ctx context.Context, events []meridian.NotificationEvent) {
	for _, event := range events {
		if err := s.Publish(ctx, event); err != nil {
			slog.ErrorContext(
				ctx, "failed to publish notification event",
				slog.String("error", err.Error()),
				slog.String("module", "signal"),
			)
		}
	}
}

// Realtime pumps events for the requested recipients into output. The input
// channel replaces the subscription set; closing ctx ends the pump.
func (s *SignalService) Realtime(ctx context.Context, input chan []string, output chan meridian.NotificationEvent) {
	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case dids, ok := <-input:
			if !ok {
				return
			}
			channels := make([]string, 0, len(dids))
			for _, did := range dids {
				channels = append(channels, notifChannel(did))
			}
			if err := pubsub.Unsubscribe(ctx); err != nil {
				slog.ErrorContext(
					ctx, "failed to reset subscriptions",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
			}
			if len(channels) > 0 {
				if err := pubsub.Subscribe(ctx, channels...); err != nil {
					slog.ErrorContext(
						ctx, "failed to subscribe",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event meridian.NotificationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(
					ctx, "failed to decode notification event",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
