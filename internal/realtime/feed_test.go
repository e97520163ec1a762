package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"giggen/internal/booking"
)

func TestFeed_SubscribeFiltersByParty(t *testing.T) {
	defer goleak.VerifyNone(t)

	feed := NewInProcess("", watermill.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())

	events, err := feed.Subscribe(ctx, booking.ChangeFilter{UserID: "bob"})
	require.NoError(t, err)

	require.NoError(t, feed.PublishChange(ctx, booking.ChangeEvent{
		Kind: booking.ChangeInsert, BookingID: "b1", SenderID: "alice", ReceiverID: "carol",
	}))
	require.NoError(t, feed.PublishChange(ctx, booking.ChangeEvent{
		Kind: booking.ChangeUpdate, BookingID: "b2", SenderID: "alice", ReceiverID: "bob",
		Status: booking.StatusAllowed, Fields: map[string]any{"status": "allowed"},
	}))

	select {
	case ev := <-events:
		assert.Equal(t, "b2", ev.BookingID)
		assert.Equal(t, booking.StatusAllowed, ev.Status)
		assert.Equal(t, "allowed", ev.Fields["status"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	cancel()
	for range events {
	}
	require.NoError(t, feed.Close())
}

func TestFeed_SkipsMalformedPayloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	feed := NewFeed(ch, ch, "test.changes", watermill.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())

	events, err := feed.Subscribe(ctx, booking.ChangeFilter{BookingID: "b1"})
	require.NoError(t, err)

	require.NoError(t, ch.Publish("test.changes", message.NewMessage(watermill.NewUUID(), []byte("{not json"))))
	require.NoError(t, feed.PublishChange(ctx, booking.ChangeEvent{
		Kind: booking.ChangeDelete, BookingID: "b1", SenderID: "alice", ReceiverID: "bob",
	}))

	select {
	case ev := <-events:
		assert.Equal(t, booking.ChangeDelete, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	cancel()
	for range events {
	}
	require.NoError(t, feed.Close())
}
