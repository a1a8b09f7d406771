// Package client is an HTTP client for the explorer API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fruitsalade/explorer/internal/browse"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/pkg/protocol"
)

// Client talks to an explorer server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	authToken string
}

// Config holds client configuration.
type Config struct {
	ServerURL string
	AuthToken string
	Timeout   time.Duration
}

// StatusError is a non-2xx response that has no more specific meaning.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		authToken: cfg.AuthToken,
	}
}

// SetAuthToken sets the JWT sent with every request.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// ListDirectory fetches the listing for a logical path such as "/" or
// "/docs/2024". A 401 maps to browse.ErrUnauthorized and a 404 to
// browse.ErrNotFound; anything else is returned as is.
func (c *Client) ListDirectory(ctx context.Context, dirPath string) (*browse.Listing, error) {
	if dirPath == "" {
		dirPath = "/"
	}
	u := c.baseURL + "/api/v1/browse?" + url.Values{"path": {dirPath}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.applyAuth(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browse request failed: %w", err)
	}
	defer resp.Body.Close()

	logging.Debug("browse response",
		logging.String("path", dirPath),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", time.Since(start)))

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var body protocol.BrowseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode browse response: %v", browse.ErrMalformed, err)
	}
	return browse.FromResponse(&body)
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return browse.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return browse.ErrNotFound
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er protocol.ErrorResponse
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
