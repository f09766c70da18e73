// Package platform contains a minimal Discord REST client covering the endpoints the bot
// needs: guild channel provisioning, invites, member moves, permission overwrites, and
// messaging. Requests authenticate with the bot token; OAuth-scoped endpoints use an app
// access token (client credentials).
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultBaseURL is the Discord REST API root.
const DefaultBaseURL = "https://discord.com/api/v10"

// Client provides minimal methods needed for community management.
type Client struct {
	BaseURL        string
	BotToken       string
	AppTokenSource *AppTokenSource
	HTTPClient     *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is an APIError with HTTP 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// do performs a bot-token authenticated request. body (if non-nil) is sent as JSON and
// out (if non-nil) receives the decoded response. reason, when set, is attached as the
// audit log reason header.
func (c *Client) do(ctx context.Context, method, path string, body, out any, reason string) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.BotToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", reason)
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// GetGatewayURL resolves the websocket gateway URL for the bot.
func (c *Client) GetGatewayURL(ctx context.Context) (string, error) {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/gateway/bot", nil, &body, ""); err != nil {
		return "", err
	}
	if body.URL == "" {
		return "", fmt.Errorf("gateway url empty")
	}
	return body.URL, nil
}

// GetApplicationID resolves the application id using an app access token. Used at startup
// as a credentials sanity check; requires AppTokenSource.
func (c *Client) GetApplicationID(ctx context.Context) (string, error) {
	if c.AppTokenSource == nil {
		return "", fmt.Errorf("no app token source configured")
	}
	tok, err := c.AppTokenSource.Get(ctx)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/oauth2/@me", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode}
	}
	var body struct {
		Application struct {
			ID string `json:"id"`
		} `json:"application"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Application.ID == "" {
		return "", fmt.Errorf("application id empty")
	}
	return body.Application.ID, nil
}
