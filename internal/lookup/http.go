package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// maxResponseBytes caps how much of a provider body is read.
const maxResponseBytes = 1 << 20

// NewHTTPClient returns the client shared by all providers. A zero timeout
// leaves the client without a deadline, like http.DefaultClient.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// getJSON performs one GET and decodes the body into out. The returned status
// is valid whenever the request reached the server.
func getJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, transportError(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: status %d: decode body: %v", ErrProtocol, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// transportError drops the request URL from *url.Error: two of the three
// providers carry the API key in the URL.
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %s: %w", ErrTransport, urlErr.Op, urlErr.Err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
