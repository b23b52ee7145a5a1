package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

var ErrNoBaseURL = errors.New("httpclient: base url not set")

// Options de un Client. Name identifica al upstream en spans y errores.
type Options struct {
	Name      string
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client es el cliente JSON de los adapters salientes (Odin).
// Cada request abre un span cliente y propaga el contexto W3C.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

func New(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := strings.TrimSpace(opts.BaseURL)
	if base != "" {
		if _, err := url.ParseRequestURI(base); err != nil {
			return nil, fmt.Errorf("invalid base url: %w", err)
		}
		base = strings.TrimRight(base, "/")
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "upstream"
	}

	return &Client{
		name:    name,
		baseURL: base,
		http:    &http.Client{Timeout: timeout, Transport: opts.Transport},
		tracer:  otel.Tracer("child-development-records/httpclient"),
	}, nil
}

func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// StatusError es una respuesta no-2xx del upstream.
type StatusError struct {
	Upstream   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status=%d", e.Upstream, e.StatusCode)
	}
	return fmt.Sprintf("%s: status=%d body=%s", e.Upstream, e.StatusCode, e.Body)
}

// Unauthorized: el upstream rechazó las credenciales (401/403).
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (c *Client) PostJSON(ctx context.Context, path string, header http.Header, in, out any) error {
	return c.do(ctx, http.MethodPost, path, header, in, out)
}

func (c *Client) GetJSON(ctx context.Context, path string, header http.Header, out any) error {
	return c.do(ctx, http.MethodGet, path, header, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, in, out any) error {
	if c == nil || c.http == nil {
		return errors.New("httpclient: nil client")
	}
	if c.baseURL == "" {
		return ErrNoBaseURL
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	ctx, span := c.tracer.Start(ctx, c.name+" "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("peer.service", c.name),
		),
	)
	defer span.End()

	err := c.roundTrip(ctx, span, method, c.baseURL+path, header, in, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, span trace.Span, method, fullURL string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: marshal json: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("httpclient: new request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Upstream:   c.name,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("httpclient: unmarshal json: %w", err)
	}
	return nil
}
