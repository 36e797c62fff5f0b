// Package bitrix talks to the Bitrix24 REST API through an inbound
// webhook URL. Client.Call is the generic transport; contacts.go and
// deals.go hold the typed CRM operations the pipeline uses.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Client struct {
	baseURL       string
	httpClient    *http.Client
	lookupRetries int
	log           *zap.Logger
}

func NewClient(baseURL string, lookupRetries int, log *zap.Logger) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if lookupRetries < 1 {
		lookupRetries = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(25) * time.Second,
		},
		lookupRetries: lookupRetries,
		log:           log,
	}
}

// Call POSTs a JSON payload to a REST method and decodes the response
// into out. API-level errors ({"error": ...}) are returned as APIError
// regardless of HTTP status.
func (c *Client) Call(ctx context.Context, method string, payload any, out any) error {
	method = strings.TrimSpace(method)
	if method == "" {
		return fmt.Errorf("method is empty")
	}

	if !strings.HasSuffix(method, ".json") {
		method += ".json"
	}

	url := c.baseURL + method

	var bodyBytes []byte
	var err error
	if payload == nil {
		bodyBytes = []byte(`{}`)
	} else {
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var apiErr APIError
	_ = json.Unmarshal(raw, &apiErr)
	if !apiErr.IsZero() {
		c.log.Debug("bitrix api error", zap.String("method", method), zap.String("error", apiErr.Errors))
		return apiErr
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w; raw=%s", err, string(raw))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(raw))
	}

	return nil
}

// parseID accepts Bitrix entity ids in either of the shapes the API
// emits: a bare number or a quoted numeric string.
func parseID(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, fmt.Errorf("empty id")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected id %q: %w", s, err)
	}
	return id, nil
}
