package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the Power BI REST API root
	DefaultBaseURL = "https://api.powerbi.com/v1.0"

	maxBodyRead    = 64 << 10
	maxBodyPreview = 1200
)

type dataflowRefreshRequest struct {
	RefreshRequest string `json:"refreshRequest"`
}

// Client issues refresh requests against the Power BI REST API. It holds no
// per-call state and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	logger     zerolog.Logger
}

func NewClient(baseURL string, httpClient HTTPClient, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// RefreshURL returns the refreshes endpoint of target. Ids are concatenated
// verbatim.
func (c *Client) RefreshURL(target Target) string {
	return c.baseURL + "/myorg/groups/" + target.WorkspaceID + "/" + target.Kind.collection() + "/" + target.ResourceID + "/refreshes"
}

func (c *Client) RefreshDataset(ctx context.Context, token, workspaceID, datasetID string) (*RefreshResult, error) {
	return c.Refresh(ctx, token, DatasetTarget(workspaceID, datasetID))
}

func (c *Client) RefreshDataflow(ctx context.Context, token, workspaceID, dataflowID string) (*RefreshResult, error) {
	return c.Refresh(ctx, token, DataflowTarget(workspaceID, dataflowID))
}

// Refresh asks Power BI to start a refresh of target.
//
// A 2xx answer returns the result and a nil error. Any other status returns
// the result together with a *StatusError. Transport failures return a nil
// result. Nothing is retried.
func (c *Client) Refresh(ctx context.Context, token string, target Target) (*RefreshResult, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	log := c.loggerFor(ctx)
	refreshURL := c.RefreshURL(target)

	body := io.Reader(http.NoBody)
	if target.Kind == KindDataflow {
		payload, err := json.Marshal(dataflowRefreshRequest{RefreshRequest: "y"})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	log.Info().Str("url", refreshURL).Msg("Request url")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send refresh request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read refresh response body")
	}

	result := &RefreshResult{
		Target:     target,
		URL:        refreshURL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		RequestID:  resp.Header.Get("RequestId"),
		Body:       preview(respBody),
	}

	if !result.Succeeded() {
		log.Warn().
			Int("status_code", result.StatusCode).
			Str("request_id", result.RequestID).
			Str("response_body_preview", result.Body).
			Msg("Response")
		return result, &StatusError{StatusCode: result.StatusCode, URL: refreshURL, Body: result.Body}
	}

	log.Info().
		Int("status_code", result.StatusCode).
		Str("request_id", result.RequestID).
		Msg("Response")
	return result, nil
}

// loggerFor prefers a logger attached to ctx, which carries per-call fields
func (c *Client) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.logger
}

func preview(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxBodyPreview {
		cut := maxBodyPreview
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "…(truncated)"
	}
	return s
}
