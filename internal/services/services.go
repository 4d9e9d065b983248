// package services implements the HTTP client for the list service REST API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/listsync/internal/shared"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:3000/api"

// APIError is a non-2xx response from the list service.
type APIError struct {
	StatusCode int
	Message    string

	missing error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("list service error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("list service error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap exposes [shared.ErrAPIRequest] plus a status specific sentinel:
// [shared.ErrNotAuthenticated] for 401 and a not-found error for 404.
func (e *APIError) Unwrap() []error {
	errs := []error{shared.ErrAPIRequest}
	switch e.StatusCode {
	case http.StatusUnauthorized:
		errs = append(errs, shared.ErrNotAuthenticated)
	case http.StatusNotFound:
		if e.missing != nil {
			errs = append(errs, e.missing)
		} else {
			errs = append(errs, shared.ErrListNotFound)
		}
	case http.StatusServiceUnavailable:
		errs = append(errs, shared.ErrServiceUnavailable)
	}
	return errs
}

// errorMessage extracts "message" from an error body. NestJS style validation
// failures send a list of messages.
func errorMessage(body []byte) string {
	var payload struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch m := payload.Message.(type) {
	case string:
		return m
	case []any:
		parts := make([]string, 0, len(m))
		for _, v := range m {
			parts = append(parts, fmt.Sprint(v))
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// itemError marks a 404 from an item endpoint as [shared.ErrItemNotFound].
func itemError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		apiErr.missing = shared.ErrItemNotFound
	}
	return err
}

// Options configures a [ListService].
type Options struct {
	BaseURL     string
	AccessToken string
	// RateLimit is the maximum number of requests per second. Zero disables limiting.
	RateLimit float64
	Timeout   time.Duration
	// Transport is the base round tripper, [http.DefaultTransport] when nil.
	Transport http.RoundTripper
}

// ListService talks to the list REST API. Owner endpoints carry the bearer
// token; the public share endpoints never do.
type ListService struct {
	baseURL string
	client  *http.Client
	public  *http.Client
	limiter *rate.Limiter
	authed  bool
}

// NormalizeBaseURL trims trailing slashes and ensures the URL ends in "/api".
func NormalizeBaseURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	if u == "" {
		return DefaultBaseURL
	}
	if !strings.HasSuffix(u, "/api") {
		u += "/api"
	}
	return u
}

// NewListService creates a client from opts.
func NewListService(opts Options) *ListService {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	s := &ListService{
		baseURL: NormalizeBaseURL(opts.BaseURL),
		public:  &http.Client{Transport: base, Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	if opts.AccessToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"})
		s.client = &http.Client{Transport: &oauth2.Transport{Source: src, Base: base}, Timeout: opts.Timeout}
		s.authed = true
	}
	return s
}

// BaseURL returns the normalized API root.
func (s *ListService) BaseURL() string {
	return s.baseURL
}

// Authenticated reports whether owner endpoints can be called.
func (s *ListService) Authenticated() bool {
	return s.authed
}

// doRequest performs an authenticated request against an owner endpoint.
func (s *ListService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if !s.authed {
		return fmt.Errorf("%w: set api.access_token or %s", shared.ErrNotAuthenticated, shared.EnvToken)
	}
	return s.send(ctx, s.client, method, endpoint, body, result)
}

// doPublic performs an unauthenticated request against a share endpoint.
func (s *ListService) doPublic(ctx context.Context, method, endpoint string, body, result any) error {
	return s.send(ctx, s.public, method, endpoint, body, result)
}

func (s *ListService) send(ctx context.Context, client *http.Client, method, endpoint string, body, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func required(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return nil
}
