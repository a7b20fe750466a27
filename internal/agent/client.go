package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prudhvinik1/chatweet/internal/models"
)

const maxResponseBytes = 1 << 20

// APIError is a non-2xx answer from the session manager.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("session manager: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("session manager: %d: %s", e.Status, e.Message)
}

type CreateSessionResult struct {
	Success      bool      `json:"success"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Message      string    `json:"message"`
}

type ValidateSessionResult struct {
	Valid   bool            `json:"valid"`
	Session *models.Session `json:"session,omitempty"`
	Message string          `json:"message,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

type CleanupResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Swept   int64  `json:"swept"`
}

// Client speaks the session-manager action protocol over HTTP.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateSession(ctx context.Context, userID, deviceID, userAgent string) (*CreateSessionResult, error) {
	var out CreateSessionResult
	err := c.call(ctx, map[string]any{
		"action":    "create_session",
		"userId":    userID,
		"deviceId":  deviceID,
		"userAgent": userAgent,
		"ipAddress": "",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.SessionToken == "" {
		return nil, fmt.Errorf("session manager: create_session returned no token")
	}
	return &out, nil
}

func (c *Client) ValidateSession(ctx context.Context, sessionToken, deviceID string) (*ValidateSessionResult, error) {
	var out ValidateSessionResult
	err := c.call(ctx, map[string]any{
		"action":       "validate_session",
		"sessionToken": sessionToken,
		"deviceId":     deviceID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, userID, sessionToken, deviceID string) error {
	return c.call(ctx, map[string]any{
		"action":       "logout",
		"userId":       userID,
		"sessionToken": sessionToken,
		"deviceId":     deviceID,
		"ipAddress":    "",
	}, nil)
}

func (c *Client) ActiveSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	var out struct {
		Sessions []*models.Session `json:"sessions"`
	}
	err := c.call(ctx, map[string]any{
		"action": "get_active_sessions",
		"userId": userID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) LoginHistory(ctx context.Context, userID string, limit int) ([]*models.LoginHistoryEntry, error) {
	var out struct {
		History []*models.LoginHistoryEntry `json:"history"`
	}
	err := c.call(ctx, map[string]any{
		"action": "get_login_history",
		"userId": userID,
		"limit":  limit,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.History, nil
}

func (c *Client) CleanupExpired(ctx context.Context) (*CleanupResult, error) {
	var out CleanupResult
	if err := c.call(ctx, map[string]any{"action": "cleanup_expired"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", body["action"], err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
			apiErr.Code = errBody.Code
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
