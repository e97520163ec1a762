// Package realtime broadcasts booking changes to open sessions.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"giggen/internal/booking"
)

const DefaultTopic = "bookings.changes"

// Feed publishes booking.ChangeEvent values on one topic and lets callers
// subscribe with a filter.
type Feed struct {
	pub   message.Publisher
	sub   message.Subscriber
	topic string
	log   watermill.LoggerAdapter
}

func NewFeed(pub message.Publisher, sub message.Subscriber, topic string, logger watermill.LoggerAdapter) *Feed {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Feed{pub: pub, sub: sub, topic: topic, log: logger}
}

// NewInProcess delivers changes only to subscribers in this process.
func NewInProcess(topic string, logger watermill.LoggerAdapter) *Feed {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return NewFeed(ch, ch, topic, logger)
}

// NewRedis shares changes across processes through a Redis stream. The
// subscriber has no consumer group, so every session sees every change.
func NewRedis(rdb *redis.Client, topic string, logger watermill.LoggerAdapter) (*Feed, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: rdb,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create redis publisher: %w", err)
	}

	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client: rdb,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create redis subscriber: %w", err)
	}

	return NewFeed(pub, sub, topic, logger), nil
}

func (f *Feed) PublishChange(ctx context.Context, ev booking.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("could not marshal change event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("booking_id", ev.BookingID)
	msg.Metadata.Set("kind", string(ev.Kind))
	msg.Metadata.Set("status", string(ev.Status))

	if err := f.pub.Publish(f.topic, msg); err != nil {
		return fmt.Errorf("could not publish change event: %w", err)
	}
	return nil
}

// Subscribe streams matching changes until ctx is done. The returned channel
// is closed when the subscription ends.
func (f *Feed) Subscribe(ctx context.Context, filter booking.ChangeFilter) (<-chan booking.ChangeEvent, error) {
	messages, err := f.sub.Subscribe(ctx, f.topic)
	if err != nil {
		return nil, fmt.Errorf("could not subscribe to %s: %w", f.topic, err)
	}

	out := make(chan booking.ChangeEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var ev booking.ChangeEvent
				if err := json.Unmarshal(msg.Payload, &ev); err != nil {
					f.log.Error("could not unmarshal change event", err, watermill.LogFields{"message_uuid": msg.UUID})
					msg.Ack()
					continue
				}
				msg.Ack()
				if !filter.Match(ev) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *Feed) Close() error {
	var errs []error
	if err := f.pub.Close(); err != nil {
		errs = append(errs, err)
	}
	if f.sub != nil && any(f.sub) != any(f.pub) {
		if err := f.sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
