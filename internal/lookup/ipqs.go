package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stellarlinkco/leakguard/internal/classify"
	"github.com/stellarlinkco/leakguard/internal/config"
)

const (
	highRiskAbove   = 80
	mediumRiskAbove = 50
)

// IPQualityScore reads the fraud score of an IP address.
type IPQualityScore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type ipqsResponse struct {
	Success    bool    `json:"success"`
	FraudScore float64 `json:"fraud_score"`
	Message    string  `json:"message,omitempty"`
}

func NewIPQualityScore(cfg config.ProviderConfig, client *http.Client) *IPQualityScore {
	if client == nil {
		client = http.DefaultClient
	}
	return &IPQualityScore{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

func (q *IPQualityScore) Policy() FailurePolicy {
	return FailClosed
}

func (q *IPQualityScore) Check(ctx context.Context, value string) (Verdict, error) {
	if q.apiKey == "" {
		return Verdict{}, fmt.Errorf("ipqs: %w", ErrNotConfigured)
	}

	endpoint := q.baseURL + "/" + url.PathEscape(q.apiKey) + "/" + url.PathEscape(value)

	var body ipqsResponse
	if _, err := getJSON(ctx, q.client, endpoint, nil, &body); err != nil {
		return Verdict{}, fmt.Errorf("ipqs: %w", err)
	}
	if !body.Success {
		return Verdict{}, fmt.Errorf("ipqs: %w: success=false: %s", ErrProtocol, body.Message)
	}

	return Verdict{
		Kind:     classify.KindIP,
		Value:    value,
		Outcome:  riskOutcome(body.FraudScore),
		Severity: riskSeverity(body.FraudScore),
		Score:    body.FraudScore,
	}, nil
}

func riskSeverity(score float64) Severity {
	switch {
	case score > highRiskAbove:
		return SeverityHigh
	case score > mediumRiskAbove:
		return SeverityMedium
	default:
		return SeverityNone
	}
}

func riskOutcome(score float64) Outcome {
	if riskSeverity(score) == SeverityNone {
		return OutcomeSafe
	}
	return OutcomeRisky
}
