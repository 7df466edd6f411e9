// Package dispatch routes one line of user input to the matching lookup
// provider, applies the provider's failure policy and records notable results
// in the user's history.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stellarlinkco/leakguard/internal/classify"
	"github.com/stellarlinkco/leakguard/internal/lookup"
	"github.com/stellarlinkco/leakguard/internal/metrics"
)

// HistoryRecorder is the part of the state store the engine writes to.
type HistoryRecorder interface {
	RecordHistory(id int64, kind classify.Kind, value string) (bool, error)
}

// Result is what Handle produced for one input.
type Result struct {
	RequestID string
	Kind      classify.Kind
	Verdict   lookup.Verdict
	Text      string
	// Recorded is true when the value was newly added to the user's history.
	Recorded bool
}

type Engine struct {
	checkers map[classify.Kind]lookup.Checker
	history  HistoryRecorder
	logger   zerolog.Logger
	metrics  metrics.Recorder
}

func New(checkers map[classify.Kind]lookup.Checker, history HistoryRecorder, logger zerolog.Logger, rec metrics.Recorder) *Engine {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Engine{
		checkers: checkers,
		history:  history,
		logger:   logger,
		metrics:  rec,
	}
}

// Handle classifies text, checks it and renders the reply. It never returns
// an error: provider and persistence failures are logged and degrade into the
// rendered text.
func (e *Engine) Handle(ctx context.Context, userID int64, text string) Result {
	value := strings.TrimSpace(text)
	kind := classify.Classify(value)
	res := Result{RequestID: uuid.NewString(), Kind: kind}

	log := e.logger.With().
		Str("request_id", res.RequestID).
		Int64("user_id", userID).
		Str("kind", kind.String()).
		Logger()

	if kind == classify.KindUnrecognized {
		e.metrics.IncChecks(kind.String(), "unrecognized")
		log.Debug().Msg("unrecognized input")
		res.Text = InvalidInputMessage
		return res
	}

	res.Verdict = e.check(ctx, log, kind, value)
	e.metrics.IncChecks(kind.String(), res.Verdict.Outcome.String())

	if notable(res.Verdict) {
		added, err := e.history.RecordHistory(userID, kind, value)
		if err != nil {
			// The verdict is still worth showing.
			log.Error().Err(err).Str("value", value).Msg("record history failed")
		} else if added {
			e.metrics.IncHistoryRecords(kind.String())
		}
		res.Recorded = added
	}

	res.Text = Render(res.Verdict)
	log.Info().
		Str("outcome", res.Verdict.Outcome.String()).
		Str("severity", res.Verdict.Severity.String()).
		Bool("recorded", res.Recorded).
		Msg("check done")
	return res
}

func (e *Engine) check(ctx context.Context, log zerolog.Logger, kind classify.Kind, value string) lookup.Verdict {
	checker, ok := e.checkers[kind]
	if !ok || checker == nil {
		err := fmt.Errorf("%w: no provider for %s", lookup.ErrNotConfigured, kind)
		e.metrics.IncProviderErrors(kind.String())
		log.Error().Err(err).Str("value", value).Msg("provider error")
		return lookup.ProviderError(kind, value)
	}

	verdict, err := checker.Check(ctx, value)
	if err == nil {
		return verdict
	}

	policy := checker.Policy()
	e.metrics.IncProviderErrors(kind.String())
	log.Error().
		Err(err).
		Str("value", value).
		Str("policy", policy.String()).
		Msg("provider error")

	if policy == lookup.FailOpen {
		return lookup.Verdict{Kind: kind, Value: value, Outcome: lookup.OutcomeSafe}
	}
	return lookup.ProviderError(kind, value)
}

// notable reports whether a verdict is written to history. Email and phone
// record only breaches; IP records every successful check; URLs never record.
func notable(v lookup.Verdict) bool {
	switch v.Kind {
	case classify.KindEmail, classify.KindPhone:
		return v.Outcome == lookup.OutcomeBreached
	case classify.KindIP:
		return v.Outcome != lookup.OutcomeProviderError
	default:
		return false
	}
}
