// Package lookup wraps the external breach and reputation services behind a
// single Checker contract.
package lookup

import (
	"context"
	"errors"

	"github.com/stellarlinkco/leakguard/internal/classify"
)

var (
	// ErrTransport covers network failures talking to a provider.
	ErrTransport = errors.New("provider transport error")
	// ErrProtocol covers responses that do not have the expected shape or status.
	ErrProtocol = errors.New("provider protocol error")
	// ErrNotConfigured is returned without any network call when a provider has no API key.
	ErrNotConfigured = errors.New("provider not configured")
)

type Outcome int

const (
	OutcomeSafe Outcome = iota
	OutcomeRisky
	OutcomeBreached
	OutcomeProviderError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSafe:
		return "safe"
	case OutcomeRisky:
		return "risky"
	case OutcomeBreached:
		return "breached"
	case OutcomeProviderError:
		return "provider_error"
	default:
		return "unknown"
	}
}

type Severity int

const (
	SeverityNone Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "none"
	}
}

// FailurePolicy says how a provider error is presented to the user.
type FailurePolicy int

const (
	// FailOpen reports a provider error as if nothing was found.
	FailOpen FailurePolicy = iota
	// FailClosed reports a provider error as an error asking the user to retry.
	FailClosed
)

func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// Verdict is the outcome of one check.
type Verdict struct {
	Kind     classify.Kind `json:"kind"`
	Value    string        `json:"value"`
	Outcome  Outcome       `json:"outcome"`
	Severity Severity      `json:"severity"`
	// Score is the IP fraud score in [0,100].
	Score float64 `json:"score,omitempty"`
	// Detections is the number of engines that flagged a URL.
	Detections int `json:"detections,omitempty"`
}

// ProviderError builds the verdict shown for a failed fail-closed check.
func ProviderError(kind classify.Kind, value string) Verdict {
	return Verdict{Kind: kind, Value: value, Outcome: OutcomeProviderError}
}

// Checker is one external lookup. Implementations are stateless apart from
// their HTTP client and are safe for concurrent use.
type Checker interface {
	Check(ctx context.Context, value string) (Verdict, error)
	Policy() FailurePolicy
}
