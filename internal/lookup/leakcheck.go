package lookup

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/stellarlinkco/leakguard/internal/classify"
	"github.com/stellarlinkco/leakguard/internal/config"
)

// LeakCheck queries the LeakCheck breach database. Email and phone checks
// share the API and differ only in the type parameter.
type LeakCheck struct {
	baseURL string
	apiKey  string
	kind    classify.Kind
	client  *http.Client
}

type leakCheckResponse struct {
	Success bool            `json:"success"`
	Found   json.RawMessage `json:"found"`
	Message string          `json:"message,omitempty"`
}

func NewLeakCheck(cfg config.ProviderConfig, kind classify.Kind, client *http.Client) *LeakCheck {
	if client == nil {
		client = http.DefaultClient
	}
	return &LeakCheck{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		kind:    kind,
		client:  client,
	}
}

// Policy is fail-open: a broken lookup reads as "not found".
func (l *LeakCheck) Policy() FailurePolicy {
	return FailOpen
}

func (l *LeakCheck) Check(ctx context.Context, value string) (Verdict, error) {
	if l.apiKey == "" {
		return Verdict{}, fmt.Errorf("leakcheck: %w", ErrNotConfigured)
	}

	u, err := url.Parse(l.baseURL)
	if err != nil {
		return Verdict{}, fmt.Errorf("leakcheck: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("key", l.apiKey)
	q.Set("check", value)
	q.Set("type", l.kind.String())
	u.RawQuery = q.Encode()

	var body leakCheckResponse
	if _, err := getJSON(ctx, l.client, u.String(), nil, &body); err != nil {
		return Verdict{}, fmt.Errorf("leakcheck: %w", err)
	}

	v := Verdict{Kind: l.kind, Value: value, Outcome: OutcomeSafe}
	if body.Success && truthy(body.Found) {
		v.Outcome = OutcomeBreached
		v.Severity = SeverityHigh
	}
	return v, nil
}

// truthy accepts found as a boolean or as a count of matching breaches.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	if b, err := strconv.ParseBool(string(raw)); err == nil {
		return b
	}
	if n, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return n != 0
	}
	return false
}
