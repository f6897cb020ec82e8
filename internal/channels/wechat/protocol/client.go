// Package protocol implements the HTTP client for the WeChat gateway API.
// The gateway exposes authcode-authenticated JSON endpoints for sending,
// sync pulls, callback registration and heartbeat.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second

	// The gateway throttles aggressive clients; pace outbound API calls.
	requestsPerSecond = 5
	requestBurst      = 10

	maxResponseBytes = 8 << 20
)

// Client is an authenticated client for one account's gateway endpoint.
type Client struct {
	serverURL string
	authToken string
	wxid      string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a gateway client. Returns a ConfigError when the server
// URL or auth token is absent.
func NewClient(serverURL, authToken, wxid string) (*Client, error) {
	if serverURL == "" {
		return nil, &ConfigError{Field: "server_url"}
	}
	if authToken == "" {
		return nil, &ConfigError{Field: "auth_token"}
	}
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		authToken: authToken,
		wxid:      wxid,
		http:      &http.Client{Timeout: defaultTimeout},
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}, nil
}

// Wxid returns the account's own id as configured on this client.
func (c *Client) Wxid() string { return c.wxid }

// postJSON issues an authenticated POST and decodes the response envelope.
// The returned error follows the bridge taxonomy: TransportError for network
// failures, ProtocolError for malformed or non-success responses.
func (c *Client) postJSON(ctx context.Context, op, apiPath string, payload any) (*Envelope, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s payload: %w", op, err)
	}

	url := fmt.Sprintf("%s%s?authcode=%s", c.serverURL, apiPath, c.authToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &ProtocolError{Op: op, Code: resp.StatusCode, Message: "unexpected HTTP status"}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, &ProtocolError{Op: op, Message: "malformed response JSON"}
	}
	if env.Code != 0 || !env.Success {
		return nil, nil, &ProtocolError{Op: op, Code: env.Code, Message: env.Message}
	}

	return &env, raw, nil
}
