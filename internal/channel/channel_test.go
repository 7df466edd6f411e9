package channel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarlinkco/leakguard/internal/bus"
	"github.com/stellarlinkco/leakguard/internal/config"
)

// mockTelegramBot implements TelegramBot interface for testing
type mockTelegramBot struct {
	updatesChan chan tgbotapi.Update
	stopped     bool
	sentMsgs    []tgbotapi.Chattable
	requests    []tgbotapi.Chattable
	sendErr     error
	requestErr  error
	self        tgbotapi.User
}

func newMockBot() *mockTelegramBot {
	return &mockTelegramBot{
		updatesChan: make(chan tgbotapi.Update, 10),
		self:        tgbotapi.User{UserName: "testbot"},
	}
}

func (m *mockTelegramBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updatesChan
}

func (m *mockTelegramBot) StopReceivingUpdates() {
	m.stopped = true
}

func (m *mockTelegramBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sentMsgs = append(m.sentMsgs, c)
	if m.sendErr != nil {
		return tgbotapi.Message{}, m.sendErr
	}
	return tgbotapi.Message{MessageID: len(m.sentMsgs)}, nil
}

func (m *mockTelegramBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.requests = append(m.requests, c)
	if m.requestErr != nil {
		return nil, m.requestErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockTelegramBot) GetSelf() tgbotapi.User {
	return m.self
}

func factoryFor(bot TelegramBot) BotFactory {
	return func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
		return bot, nil
	}
}

func newTestChannel(t *testing.T, cfg config.TelegramConfig, b *bus.MessageBus, bot TelegramBot) *TelegramChannel {
	t.Helper()
	if cfg.Token == "" {
		cfg.Token = "fake-token"
	}
	ch, err := NewTelegramChannelWithFactory(cfg, b, zerolog.Nop(), factoryFor(bot))
	require.NoError(t, err)
	return ch
}

func TestBaseChannel_IsAllowed(t *testing.T) {
	b := bus.NewMessageBus(10)

	open := NewBaseChannel("test", b, nil)
	assert.Equal(t, "test", open.Name())
	assert.True(t, open.IsAllowed("anyone"), "empty allow list admits everyone")

	closed := NewBaseChannel("test", b, []string{"user1", "user2"})
	assert.True(t, closed.IsAllowed("user1"))
	assert.True(t, closed.IsAllowed("user2"))
	assert.False(t, closed.IsAllowed("user3"))
}

func TestNewTelegramChannel(t *testing.T) {
	b := bus.NewMessageBus(10)

	_, err := NewTelegramChannel(config.TelegramConfig{}, b, zerolog.Nop())
	assert.Error(t, err, "token is required")

	ch, err := NewTelegramChannel(config.TelegramConfig{Token: "fake-token", Proxy: "http://proxy.local:8080"}, b, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, TelegramChannelName, ch.Name())
	assert.Equal(t, "http://proxy.local:8080", ch.proxy)
}

func TestTelegramChannel_InitBot(t *testing.T) {
	b := bus.NewMessageBus(10)

	ch := newTestChannel(t, config.TelegramConfig{}, b, newMockBot())
	require.NoError(t, ch.initBot())
	assert.NotNil(t, ch.bot)

	failing, err := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "x"}, b, zerolog.Nop(),
		func(string, string, *http.Client) (TelegramBot, error) { return nil, fmt.Errorf("auth failed") })
	require.NoError(t, err)
	assert.Error(t, failing.initBot())

	badProxy := newTestChannel(t, config.TelegramConfig{Proxy: "://invalid-url"}, b, newMockBot())
	assert.Error(t, badProxy.initBot())
}

func TestTelegramChannel_StartRegistersCommandsAndPolls(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()
	ch := newTestChannel(t, config.TelegramConfig{}, b, mockBot)
	ch.SetCommands([]Command{{Name: "start", Description: "Main menu"}, {Name: "status", Description: "Subscription status"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.Start(ctx))

	require.Len(t, mockBot.requests, 1)
	setCmds, ok := mockBot.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	require.Len(t, setCmds.Commands, 2)
	assert.Equal(t, "start", setCmds.Commands[0].Command)

	mockBot.updatesChan <- tgbotapi.Update{Message: nil}
	mockBot.updatesChan <- tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: 123, UserName: "alice"},
			Chat: &tgbotapi.Chat{ID: 123},
			Text: "8.8.8.8",
			Date: 1234567890,
		},
	}

	select {
	case inbound := <-b.Inbound:
		assert.Equal(t, "8.8.8.8", inbound.Content)
		assert.Equal(t, "123", inbound.SenderID)
		assert.Equal(t, "123", inbound.ChatID)
		assert.Equal(t, TelegramChannelName, inbound.Channel)
		assert.Equal(t, "alice", inbound.Metadata["username"])
	case <-time.After(time.Second):
		t.Fatal("expected inbound message")
	}

	require.NoError(t, ch.Stop())
	assert.True(t, mockBot.stopped)
}

func TestTelegramChannel_StartCommandErrorIsNotFatal(t *testing.T) {
	mockBot := newMockBot()
	mockBot.requestErr = fmt.Errorf("forbidden")
	ch := newTestChannel(t, config.TelegramConfig{}, bus.NewMessageBus(1), mockBot)
	ch.SetCommands([]Command{{Name: "start", Description: "menu"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, ch.Start(ctx))
}

func TestTelegramChannel_StartInitError(t *testing.T) {
	ch, err := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "x"}, bus.NewMessageBus(1), zerolog.Nop(),
		func(string, string, *http.Client) (TelegramBot, error) { return nil, fmt.Errorf("init failed") })
	require.NoError(t, err)
	assert.Error(t, ch.Start(context.Background()))
}

func TestTelegramChannel_HandleMessage(t *testing.T) {
	tests := []struct {
		name      string
		allowFrom []string
		msg       *tgbotapi.Message
		want      string
	}{
		{
			name: "text",
			msg:  &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Text: "a@b.c"},
			want: "a@b.c",
		},
		{
			name: "caption",
			msg:  &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Caption: "http://x.y"},
			want: "http://x.y",
		},
		{
			name:      "rejected sender",
			allowFrom: []string{"2"},
			msg:       &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"},
		},
		{
			name: "empty text",
			msg:  &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Text: "   "},
		},
		{
			name: "channel post without sender",
			msg:  &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bus.NewMessageBus(10)
			ch := newTestChannel(t, config.TelegramConfig{AllowFrom: tt.allowFrom}, b, newMockBot())

			ch.handleMessage(context.Background(), tt.msg)

			select {
			case inbound := <-b.Inbound:
				require.NotEmpty(t, tt.want, "unexpected inbound message %q", inbound.Content)
				assert.Equal(t, tt.want, inbound.Content)
			default:
				assert.Empty(t, tt.want, "expected inbound message")
			}
		})
	}
}

func TestTelegramChannel_Send(t *testing.T) {
	b := bus.NewMessageBus(10)

	t.Run("nil bot", func(t *testing.T) {
		ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b, zerolog.Nop())
		assert.Error(t, ch.Send(bus.OutboundMessage{ChatID: "123", Content: "test"}))
	})

	t.Run("invalid chat id", func(t *testing.T) {
		ch := newTestChannel(t, config.TelegramConfig{}, b, nil)
		ch.SetBot(newMockBot())
		assert.Error(t, ch.Send(bus.OutboundMessage{ChatID: "not-a-number", Content: "test"}))
	})

	t.Run("with keyboard", func(t *testing.T) {
		mockBot := newMockBot()
		ch := newTestChannel(t, config.TelegramConfig{}, b, nil)
		ch.SetBot(mockBot)

		err := ch.Send(bus.OutboundMessage{
			ChatID:   "123",
			Content:  "**Menu**",
			Keyboard: [][]string{{"Subscribe", "Unsubscribe"}, {"Tips"}},
		})
		require.NoError(t, err)
		require.Len(t, mockBot.sentMsgs, 1)

		sent := mockBot.sentMsgs[0].(tgbotapi.MessageConfig)
		assert.Equal(t, int64(123), sent.ChatID)
		assert.Equal(t, "<b>Menu</b>", sent.Text)
		assert.Equal(t, tgbotapi.ModeHTML, sent.ParseMode)
		kb, ok := sent.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
		require.True(t, ok)
		assert.True(t, kb.ResizeKeyboard)
		require.Len(t, kb.Keyboard, 2)
		assert.Equal(t, "Unsubscribe", kb.Keyboard[0][1].Text)
	})

	t.Run("long message splits and keyboard on last chunk", func(t *testing.T) {
		mockBot := newMockBot()
		ch := newTestChannel(t, config.TelegramConfig{}, b, nil)
		ch.SetBot(mockBot)

		content := strings.Repeat("This is a long line of text that will be repeated.\n", 100)
		require.NoError(t, ch.Send(bus.OutboundMessage{ChatID: "123", Content: content, Keyboard: [][]string{{"ok"}}}))

		require.GreaterOrEqual(t, len(mockBot.sentMsgs), 2)
		first := mockBot.sentMsgs[0].(tgbotapi.MessageConfig)
		last := mockBot.sentMsgs[len(mockBot.sentMsgs)-1].(tgbotapi.MessageConfig)
		assert.Nil(t, first.ReplyMarkup)
		assert.NotNil(t, last.ReplyMarkup)
	})

	t.Run("both attempts fail", func(t *testing.T) {
		mockBot := newMockBot()
		mockBot.sendErr = fmt.Errorf("chat not found")
		ch := newTestChannel(t, config.TelegramConfig{}, b, nil)
		ch.SetBot(mockBot)

		assert.Error(t, ch.Send(bus.OutboundMessage{ChatID: "123", Content: "test"}))
		assert.Len(t, mockBot.sentMsgs, 2, "retried without HTML")
	})
}

func TestTelegramChannel_SendRetriesPlainText(t *testing.T) {
	wrapper := &sendCountingBot{mockBot: newMockBot(), failFirst: true}
	ch := newTestChannel(t, config.TelegramConfig{}, bus.NewMessageBus(1), nil)
	ch.SetBot(wrapper)

	require.NoError(t, ch.Send(bus.OutboundMessage{ChatID: "123", Content: "a < b"}))
	assert.Equal(t, 2, wrapper.callCount)
}

type sendCountingBot struct {
	mockBot   *mockTelegramBot
	failFirst bool
	callCount int
}

func (s *sendCountingBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.mockBot.updatesChan
}

func (s *sendCountingBot) StopReceivingUpdates() {
	s.mockBot.stopped = true
}

func (s *sendCountingBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.callCount++
	if s.failFirst && s.callCount == 1 {
		return tgbotapi.Message{}, fmt.Errorf("HTML parse error")
	}
	return tgbotapi.Message{MessageID: 1}, nil
}

func (s *sendCountingBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return s.mockBot.Request(c)
}

func (s *sendCountingBot) GetSelf() tgbotapi.User {
	return s.mockBot.self
}

func TestToTelegramHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{"**bold**", "<b>bold</b>"},
		{"`code`", "<code>code</code>"},
		{"a & b", "a &amp; b"},
		{"<tag>", "&lt;tag&gt;"},
		{"**unclosed", "**unclosed"},
		{"`unclosed", "`unclosed"},
		{"a*b@example.com", "a*b@example.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, toTelegramHTML(tt.input), tt.input)
	}
}

// mockChannel implements Channel interface for testing
type mockChannel struct {
	mu       sync.Mutex
	name     string
	started  bool
	stopped  bool
	startErr error
	stopErr  error
	sendErr  error
	commands []Command
	sentMsgs []bus.OutboundMessage
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Start(ctx context.Context) error {
	m.started = true
	return m.startErr
}

func (m *mockChannel) Stop() error {
	m.stopped = true
	return m.stopErr
}

func (m *mockChannel) Send(msg bus.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentMsgs = append(m.sentMsgs, msg)
	return m.sendErr
}

func (m *mockChannel) sent() []bus.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bus.OutboundMessage(nil), m.sentMsgs...)
}

func (m *mockChannel) SetCommands(cmds []Command) { m.commands = cmds }

func TestChannelManager_Empty(t *testing.T) {
	m, err := NewChannelManager(config.TelegramConfig{}, bus.NewMessageBus(10), zerolog.Nop())
	require.NoError(t, err)

	assert.Empty(t, m.EnabledChannels())
	assert.NoError(t, m.StartAll(context.Background()))
	assert.NoError(t, m.StopAll())
	assert.Error(t, m.Send(TelegramChannelName, bus.OutboundMessage{ChatID: "1"}))
}

func TestChannelManager_TelegramEnabled(t *testing.T) {
	_, err := NewChannelManager(config.TelegramConfig{Enabled: true}, bus.NewMessageBus(10), zerolog.Nop())
	assert.Error(t, err, "enabled without token")

	m, err := NewChannelManager(config.TelegramConfig{Enabled: true, Token: "x"}, bus.NewMessageBus(10), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{TelegramChannelName}, m.EnabledChannels())
}

func TestChannelManager_WithMockChannel(t *testing.T) {
	b := bus.NewMessageBus(10)
	m, err := NewChannelManager(config.TelegramConfig{}, b, zerolog.Nop())
	require.NoError(t, err)

	mock := &mockChannel{name: "mock"}
	m.Register(mock)
	m.SetCommands([]Command{{Name: "start"}})

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, mock.started)
	assert.Equal(t, []string{"mock"}, m.EnabledChannels())
	assert.Len(t, mock.commands, 1)

	require.NoError(t, m.Send("mock", bus.OutboundMessage{ChatID: "7", Content: "direct"}))
	require.Len(t, mock.sent(), 1)
	assert.Equal(t, "mock", mock.sent()[0].Channel)

	// outbound messages on the bus reach the registered channel
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)
	require.NoError(t, b.PublishOutbound(ctx, bus.OutboundMessage{Channel: "mock", ChatID: "7", Content: "via bus"}))
	assert.Eventually(t, func() bool { return len(mock.sent()) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, m.StopAll())
	assert.True(t, mock.stopped)
}

func TestChannelManager_SendReturnsDeliveryError(t *testing.T) {
	m, _ := NewChannelManager(config.TelegramConfig{}, bus.NewMessageBus(1), zerolog.Nop())
	m.Register(&mockChannel{name: "mock", sendErr: fmt.Errorf("blocked by user")})

	assert.Error(t, m.Send("mock", bus.OutboundMessage{ChatID: "1"}))
}

func TestChannelManager_StartAllError(t *testing.T) {
	m, _ := NewChannelManager(config.TelegramConfig{}, bus.NewMessageBus(1), zerolog.Nop())
	m.Register(&mockChannel{name: "mock", startErr: fmt.Errorf("start failed")})

	assert.Error(t, m.StartAll(context.Background()))
}

func TestChannelManager_StopAllError(t *testing.T) {
	m, _ := NewChannelManager(config.TelegramConfig{}, bus.NewMessageBus(1), zerolog.Nop())
	m.Register(&mockChannel{name: "mock", stopErr: fmt.Errorf("stop failed")})

	assert.NoError(t, m.StopAll(), "stop errors are logged")
}
