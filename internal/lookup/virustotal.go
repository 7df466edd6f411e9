package lookup

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/stellarlinkco/leakguard/internal/classify"
	"github.com/stellarlinkco/leakguard/internal/config"
)

// VirusTotal looks up a URL report by its unpadded base64url identifier.
type VirusTotal struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type virusTotalResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Malicious *int `json:"malicious"`
			} `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

func NewVirusTotal(cfg config.ProviderConfig, client *http.Client) *VirusTotal {
	if client == nil {
		client = http.DefaultClient
	}
	return &VirusTotal{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

// Policy is fail-closed: the user is asked to retry.
func (v *VirusTotal) Policy() FailurePolicy {
	return FailClosed
}

// URLID is the identifier VirusTotal uses for a URL in /urls/{id}.
func URLID(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

func (v *VirusTotal) Check(ctx context.Context, value string) (Verdict, error) {
	if v.apiKey == "" {
		return Verdict{}, fmt.Errorf("virustotal: %w", ErrNotConfigured)
	}

	header := http.Header{}
	header.Set("x-apikey", v.apiKey)

	var body virusTotalResponse
	status, err := getJSON(ctx, v.client, v.baseURL+"/urls/"+URLID(value), header, &body)
	if status != 0 && status != http.StatusOK {
		return Verdict{}, fmt.Errorf("virustotal: %w: unexpected status %d", ErrProtocol, status)
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("virustotal: %w", err)
	}

	malicious := body.Data.Attributes.LastAnalysisStats.Malicious
	if malicious == nil {
		return Verdict{}, fmt.Errorf("virustotal: %w: missing last_analysis_stats.malicious", ErrProtocol)
	}

	verdict := Verdict{Kind: classify.KindURL, Value: value, Outcome: OutcomeSafe, Detections: *malicious}
	if *malicious > 0 {
		verdict.Outcome = OutcomeRisky
		verdict.Severity = SeverityHigh
	}
	return verdict, nil
}
