// Package remote is the client for the EcoLearn auth backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/metrics"
)

const (
	DefaultBaseURL = "http://localhost:3001"
	DefaultTimeout = 10 * time.Second

	maxBodySize = 1 << 20 // 1 MiB

	endpointLogin    = "/api/auth/login"
	endpointRegister = "/api/auth/register"
	endpointProfile  = "/api/auth/profile"
)

// ErrMalformedResponse is returned when a 2xx response does not carry the
// expected success payload.
var ErrMalformedResponse = errors.New("malformed auth response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth backend %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("auth backend %s: status %d", e.Endpoint, e.StatusCode)
}

// Session is a successful login or registration.
type Session struct {
	Token    string
	Identity auth.Identity
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for baseURL. A zero timeout selects DefaultTimeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("auth backend URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse auth backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("auth backend URL must be http or https, got %q", base)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: timeout},
	}, nil
}

// Login exchanges credentials for a token and identity.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{"email": email, "password": password}
	return c.session(ctx, endpointLogin, body)
}

// Register creates an account and returns its token and identity.
func (c *Client) Register(ctx context.Context, name, email, password string) (Session, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.session(ctx, endpointRegister, body)
}

// Profile resolves the identity owning token.
func (c *Client) Profile(ctx context.Context, token string) (auth.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return auth.Identity{}, errors.New("bearer token is required")
	}
	payload, err := c.do(ctx, http.MethodGet, endpointProfile, token, nil)
	if err != nil {
		return auth.Identity{}, err
	}
	return payload.identity()
}

func (c *Client) session(ctx context.Context, endpoint string, body any) (Session, error) {
	payload, err := c.do(ctx, http.MethodPost, endpoint, "", body)
	if err != nil {
		return Session{}, err
	}
	if payload.Token == "" {
		return Session{}, fmt.Errorf("%w: missing token", ErrMalformedResponse)
	}
	identity, err := payload.identity()
	if err != nil {
		return Session{}, err
	}
	return Session{Token: payload.Token, Identity: identity}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body any) (authPayload, error) {
	if c.HTTP == nil {
		return authPayload{}, errors.New("auth backend http client is not configured")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return authPayload{}, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, reader)
	if err != nil {
		return authPayload{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ecolearn")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.RemoteRequestDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		return authPayload{}, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	resp.Body.Close()
	metrics.RemoteRequestDuration.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if readErr != nil {
		return authPayload{}, readErr
	}

	var payload authPayload
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return authPayload{}, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(payload.Message),
		}
	}
	if decodeErr != nil {
		return authPayload{}, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if !payload.Success {
		return authPayload{}, fmt.Errorf("%w: success flag not set", ErrMalformedResponse)
	}
	return payload, nil
}

type authPayload struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	Message string       `json:"message"`
	User    *userPayload `json:"user"`
}

type userPayload struct {
	ID      flexibleID `json:"id"`
	MongoID flexibleID `json:"_id"`
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Role    string     `json:"role"`
}

func (p authPayload) identity() (auth.Identity, error) {
	if p.User == nil {
		return auth.Identity{}, fmt.Errorf("%w: missing user", ErrMalformedResponse)
	}
	id := strings.TrimSpace(string(p.User.ID))
	if id == "" {
		id = strings.TrimSpace(string(p.User.MongoID))
	}
	if id == "" {
		return auth.Identity{}, fmt.Errorf("%w: missing user id", ErrMalformedResponse)
	}
	return auth.Identity{
		ID:    id,
		Name:  p.User.Name,
		Email: p.User.Email,
		Role:  auth.ParseRole(p.User.Role),
	}, nil
}

// flexibleID accepts identifiers encoded as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}
