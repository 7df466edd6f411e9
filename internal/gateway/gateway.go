package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stellarlinkco/leakguard/internal/bus"
	"github.com/stellarlinkco/leakguard/internal/channel"
	"github.com/stellarlinkco/leakguard/internal/classify"
	"github.com/stellarlinkco/leakguard/internal/config"
	"github.com/stellarlinkco/leakguard/internal/dispatch"
	"github.com/stellarlinkco/leakguard/internal/logging"
	"github.com/stellarlinkco/leakguard/internal/lookup"
	"github.com/stellarlinkco/leakguard/internal/metrics"
	"github.com/stellarlinkco/leakguard/internal/notify"
	"github.com/stellarlinkco/leakguard/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Options for creating a Gateway
type Options struct {
	// Checkers replaces the configured lookup providers.
	Checkers map[classify.Kind]lookup.Checker
	// Backend replaces the configured store backend.
	Backend    store.Backend
	SignalChan chan os.Signal // for testing signal handling
}

// Services is the check pipeline without any chat transport. The gateway and
// the one-shot CLI commands share it.
type Services struct {
	Store   *store.Store
	Engine  *dispatch.Engine
	Metrics metrics.Recorder
}

// OpenServices opens the store and builds the providers and the engine.
func OpenServices(cfg *config.Config, logger zerolog.Logger, rec metrics.Recorder, opts Options) (*Services, error) {
	if rec == nil {
		rec = metrics.Noop{}
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = store.OpenBackend(cfg.Store, logging.Component(logger, "badger"))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}
	st := store.New(backend, logging.Component(logger, "store"), rec)

	checkers := opts.Checkers
	if checkers == nil {
		var err error
		checkers, err = lookup.NewProviders(cfg.Lookup)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("create providers: %w", err)
		}
	}

	return &Services{
		Store:   st,
		Engine:  dispatch.New(checkers, st, logging.Component(logger, "dispatch"), rec),
		Metrics: rec,
	}, nil
}

func (s *Services) Close() error {
	return s.Store.Close()
}

type Gateway struct {
	cfg        *config.Config
	logger     zerolog.Logger
	bus        *bus.MessageBus
	channels   *channel.ChannelManager
	services   *Services
	router     *Router
	scheduler  *notify.Scheduler
	metricsSrv *http.Server
	signalChan chan os.Signal // for testing
}

// New creates a Gateway with default options
func New(cfg *config.Config, logger zerolog.Logger) (*Gateway, error) {
	return NewWithOptions(cfg, logger, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, logger zerolog.Logger, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		logger:     logging.Component(logger, "gateway"),
		signalChan: opts.SignalChan,
	}

	var rec metrics.Recorder = metrics.Noop{}
	if cfg.Metrics.Enabled {
		m := metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		g.metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Addr(),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		rec = m
	}

	services, err := OpenServices(cfg, logger, rec, opts)
	if err != nil {
		return nil, err
	}
	g.services = services

	// Message bus
	g.bus = bus.NewMessageBus(config.DefaultBufSize)
	g.bus.SetLogger(logging.Component(logger, "bus"))

	chMgr, err := channel.NewChannelManager(cfg.Telegram, g.bus, logging.Component(logger, "channel"))
	if err != nil {
		_ = services.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	chMgr.SetCommands(Commands)
	g.channels = chMgr

	g.router = NewRouter(services.Store, services.Engine, logging.Component(logger, "router"))

	if cfg.Notify.Enabled {
		interval, err := cfg.Notify.IntervalDuration()
		if err != nil {
			_ = services.Close()
			return nil, fmt.Errorf("notify interval: %w", err)
		}
		g.scheduler = notify.NewScheduler(interval, cfg.Notify.Message, services.Store,
			notify.SenderFunc(g.sendDirect), logging.Component(logger, "notify"), rec)
	}

	return g, nil
}

// sendDirect delivers text to a user's private chat on Telegram and returns
// the delivery error to the caller.
func (g *Gateway) sendDirect(_ context.Context, userID int64, text string) error {
	return g.channels.Send(channel.TelegramChannelName, bus.OutboundMessage{
		ChatID:  strconv.FormatInt(userID, 10),
		Content: text,
	})
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	g.logger.Info().Strs("channels", g.channels.EnabledChannels()).Msg("channels started")

	if g.scheduler != nil {
		if err := g.scheduler.Start(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("notification scheduler start failed")
		}
	}

	if g.metricsSrv != nil {
		go func() {
			g.logger.Info().Str("addr", g.metricsSrv.Addr).Msg("metrics listening")
			if err := g.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go g.processLoop(ctx)

	g.logger.Info().Msg("running")

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	g.logger.Info().Msg("shutting down")
	return g.Shutdown()
}

// processLoop handles inbound messages one at a time in arrival order.
func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.handleInbound(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	reply := Reply{Text: msgNoUserID}
	route := "invalid_sender"

	userID, err := msg.UserID()
	if err != nil {
		g.logger.Warn().Err(err).Str("sender_id", msg.SenderID).Msg("non-numeric sender id")
	} else {
		route, reply = g.router.Dispatch(ctx, Request{UserID: userID, Text: msg.Content})
	}

	g.logger.Debug().
		Str("channel", msg.Channel).
		Str("sender_id", msg.SenderID).
		Str("route", route).
		Str("text", truncate(msg.Content, 80)).
		Msg("inbound")

	if reply.Text == "" {
		return
	}
	out := bus.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		Content:  reply.Text,
		Keyboard: reply.Keyboard,
	}
	if err := g.bus.PublishOutbound(ctx, out); err != nil {
		g.logger.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("reply dropped")
	}
}

func (g *Gateway) Shutdown() error {
	if g.scheduler != nil {
		g.scheduler.Stop()
	}
	_ = g.channels.StopAll()

	if g.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := g.metricsSrv.Shutdown(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("metrics server shutdown")
		}
	}

	if err := g.services.Close(); err != nil {
		g.logger.Warn().Err(err).Msg("close store")
	}
	g.logger.Info().Msg("shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
