package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/set-night/appealrouter/internal/config"
	"github.com/set-night/appealrouter/internal/domain"
	"github.com/set-night/appealrouter/internal/metrics"
)

// StatusClient queries the external appeal-status API. Every failure is
// reported as an unknown status.
type StatusClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewStatusClient(baseURL string, httpClient *http.Client) *StatusClient {
	return &StatusClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// NewStatusHTTPClient builds the authenticated client for the status API:
// OAuth2 client-credential tokens (fetched and refreshed on expiry) when
// configured, otherwise a static bearer API key.
func NewStatusHTTPClient(cfg *config.Config) *http.Client {
	if cfg.UsesClientCredentials() {
		cc := &clientcredentials.Config{
			ClientID:     cfg.StatusClientID,
			ClientSecret: cfg.StatusClientSecret,
			TokenURL:     cfg.StatusTokenURL,
		}
		client := cc.Client(context.Background())
		client.Timeout = cfg.StatusTimeout
		return client
	}
	return &http.Client{
		Timeout:   cfg.StatusTimeout,
		Transport: &bearerTransport{token: cfg.StatusAPIKey, base: http.DefaultTransport},
	}
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(r)
}

type statusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (c *StatusClient) Status(ctx context.Context, appealID string) (domain.AppealStatus, bool) {
	status, err := c.fetch(ctx, appealID)
	if err != nil {
		slog.Error("status API call failed", "appeal_id", appealID, "error", err)
		metrics.StatusRequests.WithLabelValues("unknown").Inc()
		return "", false
	}
	metrics.StatusRequests.WithLabelValues("known").Inc()
	return status, true
}

func (c *StatusClient) fetch(ctx context.Context, appealID string) (domain.AppealStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(appealID), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	status := strings.ToLower(strings.TrimSpace(body.Status))
	if status == "" {
		return "", fmt.Errorf("response for %s carries no status", appealID)
	}

	slog.Debug("status API response", "appeal_id", appealID, "status", status, "timestamp", body.Timestamp)
	return domain.AppealStatus(status), nil
}
