package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundMessage_SessionKey(t *testing.T) {
	m := &InboundMessage{Channel: "telegram", ChatID: "42"}
	assert.Equal(t, "telegram:42", m.SessionKey())
}

func TestInboundMessage_UserID(t *testing.T) {
	m := &InboundMessage{SenderID: "123456789"}
	id, err := m.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), id)

	_, err = (&InboundMessage{SenderID: "bob"}).UserID()
	assert.Error(t, err)
}

func TestMessageBus_DispatchOutbound(t *testing.T) {
	b := NewMessageBus(10)
	got := make(chan OutboundMessage, 1)
	b.SubscribeOutbound("telegram", func(msg OutboundMessage) { got <- msg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	// unknown channel is dropped, the loop keeps going
	require.NoError(t, b.PublishOutbound(ctx, OutboundMessage{Channel: "irc", Content: "lost"}))
	require.NoError(t, b.PublishOutbound(ctx, OutboundMessage{Channel: "telegram", ChatID: "1", Content: "hi"}))

	select {
	case msg := <-got:
		assert.Equal(t, "hi", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("message not dispatched")
	}
}

func TestMessageBus_SubscribeReplaces(t *testing.T) {
	b := NewMessageBus(1)
	var first, second int
	b.SubscribeOutbound("x", func(OutboundMessage) { first++ })
	b.SubscribeOutbound("x", func(OutboundMessage) { second++ })

	b.dispatch(OutboundMessage{Channel: "x"})

	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}

func TestMessageBus_PublishOutboundCancelled(t *testing.T) {
	b := NewMessageBus(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.PublishOutbound(ctx, OutboundMessage{Channel: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
