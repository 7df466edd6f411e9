package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stellarlinkco/leakguard/internal/bus"
	"github.com/stellarlinkco/leakguard/internal/config"
)

type ChannelManager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
	logger   zerolog.Logger
}

func NewChannelManager(cfg config.TelegramConfig, b *bus.MessageBus, logger zerolog.Logger) (*ChannelManager, error) {
	m := &ChannelManager{
		channels: make(map[string]Channel),
		bus:      b,
		logger:   logger,
	}

	if cfg.Enabled {
		ch, err := NewTelegramChannel(cfg, b, logger.With().Str("channel", TelegramChannelName).Logger())
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		m.Register(ch)
	}

	return m, nil
}

// Register adds ch and routes outbound messages for it through its Send.
func (m *ChannelManager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
	m.bus.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
		if err := ch.Send(msg); err != nil {
			m.logger.Error().Err(err).Str("channel", ch.Name()).Str("chat_id", msg.ChatID).Msg("send failed")
		}
	})
}

// Send delivers msg on the named channel directly, bypassing the bus, so the
// caller sees the delivery error.
func (m *ChannelManager) Send(name string, msg bus.OutboundMessage) error {
	ch, ok := m.channels[name]
	if !ok {
		return fmt.Errorf("channel %q not enabled", name)
	}
	msg.Channel = name
	return ch.Send(msg)
}

// SetCommands publishes cmds on every channel that supports a command menu.
func (m *ChannelManager) SetCommands(cmds []Command) {
	for _, ch := range m.channels {
		if cs, ok := ch.(CommandSetter); ok {
			cs.SetCommands(cmds)
		}
	}
}

func (m *ChannelManager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			m.logger.Info().Str("channel", name).Msg("starting")
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (m *ChannelManager) StopAll() error {
	for name, ch := range m.channels {
		m.logger.Info().Str("channel", name).Msg("stopping")
		if err := ch.Stop(); err != nil {
			m.logger.Error().Err(err).Str("channel", name).Msg("stop failed")
		}
	}
	return nil
}

func (m *ChannelManager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
