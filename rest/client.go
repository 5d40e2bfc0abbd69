package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// TokenSource supplies the current bearer token and can refresh it.
// Token must be re-read on every request; a refresh may replace the
// token at any time, so callers never cache its result.
type TokenSource interface {
	Token() string
	Refresh(ctx context.Context) error
}

// RequestOpts captures inputs for API calls.
type RequestOpts struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    any
	Headers map[string]string
	// Token overrides the token source for this call. Supplying an
	// explicit token disables the refresh-and-retry behavior.
	Token string
	// SkipAuth omits the Authorization header entirely. Used by the
	// auth endpoints themselves to avoid refresh recursion.
	SkipAuth bool
}

// Response bundles the HTTP response metadata.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// APIError is a non-2xx response with its server-reported message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Err returns nil for 2xx responses, otherwise an *APIError whose
// message is parsed from the body's message/error field with the raw
// status text as fallback.
func (r *Response) Err() error {
	if r.Status >= 200 && r.Status < 300 {
		return nil
	}

	msg := parseErrorMessage(r.Body)
	if msg == "" {
		msg = strings.TrimSpace(string(r.Body))
	}
	if msg == "" {
		msg = http.StatusText(r.Status)
	}
	return &APIError{Status: r.Status, Message: msg}
}

// DecodeJSON unmarshals the response body.
func (r *Response) DecodeJSON(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func parseErrorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Error
}

// Client performs REST calls against the storefront API, injecting
// bearer credentials and retrying once on 401 after a token refresh.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Response]
	tokens  TokenSource
}

// NewClient constructs a Client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name:    "storefront-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[*Response](settings),
	}
}

// SetTokenSource attaches the session token source. Must be called
// before serving requests; it is not safe to swap concurrently.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// Do performs a generic API request, retrying once on 401.
func (c *Client) Do(ctx context.Context, opts RequestOpts) (*Response, error) {
	if opts.Method == "" {
		return nil, errors.New("request method is required")
	}
	if strings.TrimLeft(opts.Path, "/") == "" {
		return nil, errors.New("request path is required")
	}

	buildRequest := func(token string) (*http.Request, error) {
		targetURL, err := c.makeURL(opts.Path, opts.Query)
		if err != nil {
			return nil, err
		}

		var bodyReader io.Reader
		if opts.Body != nil {
			payload, err := json.Marshal(opts.Body)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, opts.Method, targetURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}

		if opts.Body != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		return req, nil
	}

	req, err := buildRequest(c.currentToken(opts))
	if err != nil {
		return nil, err
	}

	resp, err := c.execute(req)
	if err != nil {
		return nil, err
	}

	if resp.Status != http.StatusUnauthorized || opts.Token != "" || opts.SkipAuth || c.tokens == nil {
		return resp, nil
	}

	// Token likely expired; refresh and retry once.
	if err := c.tokens.Refresh(ctx); err != nil {
		log.Printf("[REST] Token refresh failed: %v", err)
		return resp, nil
	}

	req, err = buildRequest(c.currentToken(opts))
	if err != nil {
		return nil, err
	}

	return c.execute(req)
}

// DoJSON performs the request, converts non-2xx responses to an
// APIError and unmarshals the body into out when out is non-nil.
func (c *Client) DoJSON(ctx context.Context, opts RequestOpts, out any) error {
	resp, err := c.Do(ctx, opts)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.DecodeJSON(out)
}

// Upload performs a multipart file upload to path using the given form
// field, filename and content type.
func (c *Client) Upload(ctx context.Context, path, field, filename, contentType string, data []byte, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write multipart field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	targetURL, err := c.makeURL(path, nil)
	if err != nil {
		return err
	}

	buildRequest := func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("create upload request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	}

	req, err := buildRequest(c.currentToken(RequestOpts{}))
	if err != nil {
		return err
	}

	resp, err := c.execute(req)
	if err != nil {
		return err
	}

	if resp.Status == http.StatusUnauthorized && c.tokens != nil {
		if refreshErr := c.tokens.Refresh(ctx); refreshErr == nil {
			req, err = buildRequest(c.currentToken(RequestOpts{}))
			if err != nil {
				return err
			}
			resp, err = c.execute(req)
			if err != nil {
				return err
			}
		}
	}

	if err := resp.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.DecodeJSON(out)
}

func (c *Client) currentToken(opts RequestOpts) string {
	if opts.SkipAuth {
		return ""
	}
	if opts.Token != "" {
		return opts.Token
	}
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) makeURL(path string, query map[string]string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse API base URL: %w", err)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		values := u.Query()
		for k, v := range query {
			values.Set(k, v)
		}
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

func (c *Client) execute(req *http.Request) (*Response, error) {
	return c.breaker.Execute(func() (*Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		return &Response{
			Status: resp.StatusCode,
			Body:   respBody,
			Header: resp.Header.Clone(),
		}, nil
	})
}
