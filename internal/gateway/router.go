package gateway

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stellarlinkco/leakguard/internal/dispatch"
	"github.com/stellarlinkco/leakguard/internal/store"
)

// SubscriptionStore is the part of the state store chat handlers use.
type SubscriptionStore interface {
	IsSubscribed(id int64) (bool, error)
	Subscribe(id int64) (bool, error)
	Unsubscribe(id int64) (bool, error)
	GetHistory(id int64) (store.UserHistory, error)
}

// Checker runs one value check.
type Checker interface {
	Handle(ctx context.Context, userID int64, text string) dispatch.Result
}

type Request struct {
	UserID int64
	Text   string
}

type Reply struct {
	Text     string
	Keyboard [][]string
}

type Handler func(ctx context.Context, req Request) Reply

// Route pairs a predicate on the message text with its handler.
type Route struct {
	Name   string
	Match  func(text string) bool
	Handle Handler
}

// Router holds the ordered registration table. The first route whose
// predicate matches handles the message; unmatched text goes to the fallback.
type Router struct {
	routes   []Route
	fallback Route
}

func NewRouter(subs SubscriptionStore, checker Checker, logger zerolog.Logger) *Router {
	h := &handlers{subs: subs, checker: checker, logger: logger}
	return &Router{
		routes: []Route{
			{Name: "start", Match: isCommand("start"), Handle: h.start},
			{Name: "help", Match: isCommand("help"), Handle: staticReply(msgHelp)},
			{Name: "status", Match: isCommand("status"), Handle: h.status},
			{Name: "subscribe", Match: equals(ButtonSubscribe), Handle: h.subscribe},
			{Name: "unsubscribe", Match: equals(ButtonUnsubscribe), Handle: h.unsubscribe},
			{Name: "tips", Match: equals(ButtonTips), Handle: staticReply(strings.Join(securityTips, "\n"))},
			{Name: "prompt_url", Match: equals(ButtonCheckURL), Handle: staticReply(msgPromptURL)},
			{Name: "prompt_email", Match: equals(ButtonCheckEmail), Handle: staticReply(msgPromptEmail)},
			{Name: "prompt_phone", Match: equals(ButtonCheckPhone), Handle: staticReply(msgPromptPhone)},
			{Name: "prompt_ip", Match: equals(ButtonCheckIP), Handle: staticReply(msgPromptIP)},
			{Name: "2fa", Match: equals(ButtonTwoFactor), Handle: staticReply(msgTwoFactor)},
		},
		fallback: Route{Name: "check", Handle: h.check},
	}
}

// Dispatch routes req and returns the name of the route that handled it
// together with its reply.
func (r *Router) Dispatch(ctx context.Context, req Request) (string, Reply) {
	text := strings.TrimSpace(req.Text)
	for _, route := range r.routes {
		if route.Match(text) {
			return route.Name, route.Handle(ctx, req)
		}
	}
	return r.fallback.Name, r.fallback.Handle(ctx, req)
}

func equals(label string) func(string) bool {
	return func(text string) bool { return text == label }
}

// isCommand matches "/name", "/name@botname" and "/name args".
func isCommand(name string) func(string) bool {
	return func(text string) bool {
		if !strings.HasPrefix(text, "/") {
			return false
		}
		cmd, _, _ := strings.Cut(text[1:], " ")
		cmd, _, _ = strings.Cut(cmd, "@")
		return strings.EqualFold(cmd, name)
	}
}

func staticReply(text string) Handler {
	return func(context.Context, Request) Reply {
		return Reply{Text: text}
	}
}

type handlers struct {
	subs    SubscriptionStore
	checker Checker
	logger  zerolog.Logger
}

func (h *handlers) start(context.Context, Request) Reply {
	return Reply{Text: msgWelcome, Keyboard: mainKeyboard}
}

func (h *handlers) subscribe(_ context.Context, req Request) Reply {
	added, err := h.subs.Subscribe(req.UserID)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("subscribe failed")
		return Reply{Text: msgSubscribeFailed}
	}
	if !added {
		return Reply{Text: msgAlreadySubscribed}
	}
	return Reply{Text: msgSubscribed}
}

func (h *handlers) unsubscribe(_ context.Context, req Request) Reply {
	removed, err := h.subs.Unsubscribe(req.UserID)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("unsubscribe failed")
		return Reply{Text: msgSubscribeFailed}
	}
	if !removed {
		return Reply{Text: msgNotSubscribed}
	}
	return Reply{Text: msgUnsubscribed}
}

func (h *handlers) status(_ context.Context, req Request) Reply {
	subscribed, err := h.subs.IsSubscribed(req.UserID)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("status: load subscribers failed")
		return Reply{Text: msgStatusFailed}
	}
	hist, err := h.subs.GetHistory(req.UserID)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("status: load history failed")
		return Reply{Text: msgStatusFailed}
	}
	return Reply{Text: renderStatus(subscribed, hist)}
}

func (h *handlers) check(ctx context.Context, req Request) Reply {
	return Reply{Text: h.checker.Handle(ctx, req.UserID, req.Text).Text}
}
