// Package backend is the HTTP client for the stock advisor API: auth, market
// data, watchlist and the conversational agent.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"stockdesk/internal/domain"
)

// ErrInvalidCredentials is returned by Login for any non-success response.
var ErrInvalidCredentials = errors.New("invalid credentials")

// RegistrationError carries the backend's detail message for a rejected
// registration.
type RegistrationError struct {
	Code   int
	Detail string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration rejected (%d): %s", e.Code, e.Detail)
}

// StatusError reports a non-success HTTP status for op.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
}

// Credentials supplies the bearer token attached to authenticated requests.
type Credentials interface {
	Credential() (string, bool)
}

// Client talks to the advisor API.
type Client struct {
	rc    *resty.Client
	creds Credentials
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// NewClient creates a client for the API at baseURL. Authenticated calls
// attach the credential from creds when one is present.
func NewClient(baseURL string, timeout time.Duration, creds Credentials, log *slog.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetLogger(restyLogger{log}).
		SetHeader("Accept", "application/json")
	return &Client{rc: rc, creds: creds}
}

// request starts a JSON request bound to ctx.
func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx).ForceContentType("application/json")
}

// authed starts a request carrying the bearer credential if present.
func (c *Client) authed(ctx context.Context) *resty.Request {
	r := c.request(ctx)
	if tok, ok := c.creds.Credential(); ok {
		r.SetAuthToken(tok)
	}
	return r
}

// Login exchanges username/password for an access token. Any non-success
// status yields ErrInvalidCredentials without the backend's detail.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var tok tokenResponse
	resp, err := c.request(ctx).
		SetFormData(map[string]string{
			"username": username,
			"password": password,
		}).
		SetResult(&tok).
		Post("/auth/token")
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	if !resp.IsSuccess() || tok.AccessToken == "" {
		return "", ErrInvalidCredentials
	}
	return tok.AccessToken, nil
}

// Register creates an account. A rejected registration returns a
// *RegistrationError carrying the backend detail.
func (c *Client) Register(ctx context.Context, username, password string) error {
	var detail detailResponse
	resp, err := c.request(ctx).
		SetBody(map[string]string{
			"username": username,
			"password": password,
		}).
		SetError(&detail).
		Post("/auth/register")
	if err != nil {
		return fmt.Errorf("registering: %w", err)
	}
	if !resp.IsSuccess() {
		if detail.Detail == "" {
			return &StatusError{Op: "registering", Code: resp.StatusCode()}
		}
		return &RegistrationError{Code: resp.StatusCode(), Detail: detail.Detail}
	}
	return nil
}

// Indexes returns the index snapshots for region in backend order.
func (c *Client) Indexes(ctx context.Context, region string) ([]domain.IndexSnapshot, error) {
	var out []domain.IndexSnapshot
	resp, err := c.request(ctx).
		SetQueryParam("country", region).
		SetResult(&out).
		Get("/market/indexes")
	if err != nil {
		return nil, fmt.Errorf("fetching indexes: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Op: "fetching indexes", Code: resp.StatusCode()}
	}
	return out, nil
}

// Chart returns the price history of symbol over period (e.g. "1mo").
// An empty period uses the backend default.
func (c *Client) Chart(ctx context.Context, symbol, period string) (domain.Series, error) {
	var out domain.Series
	r := c.request(ctx).
		SetPathParam("symbol", symbol).
		SetResult(&out)
	if period != "" {
		r.SetQueryParam("period", period)
	}
	resp, err := r.Get("/market/chart/{symbol}")
	if err != nil {
		return nil, fmt.Errorf("fetching chart for %s: %w", symbol, err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Op: "fetching chart for " + symbol, Code: resp.StatusCode()}
	}
	return out, nil
}

// Watchlist returns the authenticated user's symbols.
func (c *Client) Watchlist(ctx context.Context) ([]string, error) {
	var out []string
	resp, err := c.authed(ctx).
		SetResult(&out).
		Get("/watchlist")
	if err != nil {
		return nil, fmt.Errorf("fetching watchlist: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Op: "fetching watchlist", Code: resp.StatusCode()}
	}
	return out, nil
}

// AddToWatchlist appends symbol to the user's watchlist. The response body
// is ignored.
func (c *Client) AddToWatchlist(ctx context.Context, symbol string) error {
	resp, err := c.authed(ctx).
		SetQueryParam("symbol", symbol).
		Post("/watchlist")
	if err != nil {
		return fmt.Errorf("adding %s to watchlist: %w", symbol, err)
	}
	if !resp.IsSuccess() {
		return &StatusError{Op: "adding " + symbol + " to watchlist", Code: resp.StatusCode()}
	}
	return nil
}

// Chat sends message to the agent and returns its markup response.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	var out chatResponse
	resp, err := c.authed(ctx).
		SetBody(chatRequest{Message: message}).
		SetResult(&out).
		Post("/agent/chat")
	if err != nil {
		return "", fmt.Errorf("contacting agent: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &StatusError{Op: "contacting agent", Code: resp.StatusCode()}
	}
	if out.Response == nil {
		return "", errors.New("contacting agent: response field missing")
	}
	return *out.Response, nil
}

// restyLogger routes resty's internal warnings to slog so nothing is written
// to the terminal.
type restyLogger struct {
	log *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "resty")
}
