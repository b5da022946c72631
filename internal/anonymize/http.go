package anonymize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type request struct {
	Phrases []string `json:"phrases"`
}

type response struct {
	AnonymizedPhrases []string `json:"anonymizedPhrases"`
}

// HTTPClient calls a remote anonymization endpoint. Calls are rate limited
// and each one is bounded by Timeout.
type HTTPClient struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewHTTPClient returns a client allowing rps calls per second with bursts of one.
func NewHTTPClient(url string, rps float64, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url:     url,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
	}
}

func (c *HTTPClient) Anonymize(ctx context.Context, phrases []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("anonymize: %w", err)
	}

	body, err := json.Marshal(request{Phrases: phrases})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anonymize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("anonymize: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("anonymize: decode response: %w", err)
	}
	return out.AnonymizedPhrases, nil
}
