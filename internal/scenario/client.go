package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/gigbook/internal/adapters/http/api"
	"github.com/okian/gigbook/internal/app/reconcile"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

// client calls the API as any user by signing its own tokens.
type client struct {
	http    *http.Client
	baseURL string
	auth    *api.Authenticator
}

func newClient(config *Config) *client {
	return &client{
		http:    &http.Client{Timeout: config.Timeout},
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		auth:    api.NewAuthenticator(config.JWTSecret),
	}
}

// do sends body as JSON on behalf of user and decodes the response into out.
func (c *client) do(ctx context.Context, method, path, user string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		tok, err := c.auth.Issue(user, tokenTTL)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// subscribe opens the venue's update stream as user.
func (c *client) subscribe(ctx context.Context, user, venueID string) (*websocket.Conn, error) {
	tok, err := c.auth.Issue(user, tokenTTL)
	if err != nil {
		return nil, err
	}
	url := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/venues/" + venueID + "/subscribe?access_token=" + tok
	dialer := websocket.Dialer{HandshakeTimeout: c.http.Timeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", venueID, err)
	}
	return conn, nil
}

// watch reads updates from conn until it closes. The returned channel
// yields the update reasons in arrival order.
func watch(conn *websocket.Conn, readTimeout time.Duration) <-chan reconcile.Reason {
	out := make(chan reconcile.Reason, 64)
	go func() {
		defer close(out)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			var u reconcile.Update
			if err := conn.ReadJSON(&u); err != nil {
				return
			}
			select {
			case out <- u.Reason:
			default:
			}
		}
	}()
	return out
}
