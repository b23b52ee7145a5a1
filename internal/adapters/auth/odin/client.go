package odin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"child-development-records/internal/platform/httpclient"
	"child-development-records/internal/ports/auth"
)

var (
	ErrOdinNotConfigured = errors.New("odin client not configured")
	ErrOdinUnauthorized  = errors.New("odin unauthorized")
	ErrOdinUpstream      = errors.New("odin upstream error")
	ErrTokenEmpty        = errors.New("token is empty")
)

const verifyPath = "/v1/tokens/verify"

// Config del cliente Odin (IAM). Viene de ODIN_BASE_URL / ODIN_API_KEY.
type Config struct {
	BaseURL string
	APIKey  string

	// Header de la API key; vacío => "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

// Client implementa auth.AuthVerifier contra Odin (AUTH_MODE=odin).
type Client struct {
	http         *httpclient.Client
	apiKey       string
	apiKeyHeader string
}

var _ auth.AuthVerifier = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc, err := httpclient.New(httpclient.Options{
		Name:    "odin",
		BaseURL: cfg.BaseURL,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("odin client: %w", err)
	}

	return &Client{
		http:         hc,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http.BaseURL() != "" && c.apiKey != ""
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
}

// Verify pide a Odin los claims del token de sesión.
func (c *Client) Verify(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}
	if !c.IsConfigured() {
		return auth.Claims{}, ErrOdinNotConfigured
	}

	header := http.Header{}
	header.Set(c.apiKeyHeader, c.apiKey)
	header.Set("Authorization", "Bearer "+token)

	var out verifyResponse
	if err := c.http.PostJSON(ctx, verifyPath, header, verifyRequest{Token: token}, &out); err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			if se.Unauthorized() {
				return auth.Claims{}, ErrOdinUnauthorized
			}
			return auth.Claims{}, fmt.Errorf("%w: status=%d", ErrOdinUpstream, se.StatusCode)
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrOdinUpstream, err)
	}

	userID := strings.TrimSpace(out.UserID)
	if userID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user_id", ErrOdinUpstream)
	}

	return auth.Claims{
		UserID:   userID,
		Email:    strings.TrimSpace(out.Email),
		Name:     strings.TrimSpace(out.Name),
		TenantID: strings.TrimSpace(out.TenantID),
	}, nil
}
