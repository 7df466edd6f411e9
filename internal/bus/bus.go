package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// OutboundHandler delivers an outbound message on one channel.
type OutboundHandler func(msg OutboundMessage)

// MessageBus carries messages between channels and the gateway.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu       sync.RWMutex
	handlers map[string]OutboundHandler
	logger   zerolog.Logger
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		Inbound:  make(chan InboundMessage, bufSize),
		Outbound: make(chan OutboundMessage, bufSize),
		handlers: make(map[string]OutboundHandler),
		logger:   zerolog.Nop(),
	}
}

func (b *MessageBus) SetLogger(logger zerolog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// SubscribeOutbound registers the handler for messages addressed to channel.
// A later registration for the same channel replaces the earlier one.
func (b *MessageBus) SubscribeOutbound(channel string, fn OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = fn
}

// PublishOutbound queues msg, blocking until there is room or ctx is done.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	select {
	case b.Outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DispatchOutbound hands queued outbound messages to their channel handler
// until ctx is done.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.dispatch(msg)
		case <-ctx.Done():
			return
		}
	}
}

func (b *MessageBus) dispatch(msg OutboundMessage) {
	b.mu.RLock()
	fn, ok := b.handlers[msg.Channel]
	logger := b.logger
	b.mu.RUnlock()

	if !ok {
		logger.Warn().Str("channel", msg.Channel).Str("chat_id", msg.ChatID).Msg("no outbound handler, message dropped")
		return
	}
	fn(msg)
}
