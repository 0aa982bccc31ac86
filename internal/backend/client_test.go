package backend_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockdesk/internal/backend"
	"stockdesk/internal/backend/backendtest"
	"stockdesk/internal/domain"
)

type staticCreds string

func (s staticCreds) Credential() (string, bool) { return string(s), s != "" }

// statusCode returns the HTTP status carried by a *backend.StatusError, or 0.
func statusCode(err error) int {
	var se *backend.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func newClient(url string, creds backend.Credentials) *backend.Client {
	return backend.NewClient(url, 5*time.Second, creds, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLogin(t *testing.T) {
	fake := backendtest.New()
	srv := fake.Serve(t)
	c := newClient(srv.URL, staticCreds(""))
	ctx := context.Background()

	tok, err := c.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok != backendtest.TokenFor("alice") {
		t.Errorf("token = %q, want %q", tok, backendtest.TokenFor("alice"))
	}

	_, err = c.Login(ctx, "alice", "wrong")
	if !errors.Is(err, backend.ErrInvalidCredentials) {
		t.Errorf("Login with bad password: err = %v, want ErrInvalidCredentials", err)
	}
	if strings.Contains(err.Error(), "Incorrect") {
		t.Errorf("error leaks backend detail: %v", err)
	}
}

func TestLoginSendsForm(t *testing.T) {
	var contentType, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc","token_type":"bearer"}`))
	}))
	defer srv.Close()

	tok, err := newClient(srv.URL, staticCreds("")).Login(context.Background(), "bob", "p w")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok != "abc" {
		t.Errorf("token = %q, want %q", tok, "abc")
	}
	if !strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		t.Errorf("Content-Type = %q, want form-urlencoded", contentType)
	}
	if !strings.Contains(body, "username=bob") || !strings.Contains(body, "password=p+w") {
		t.Errorf("form body = %q", body)
	}
}

func TestRegister(t *testing.T) {
	fake := backendtest.New()
	srv := fake.Serve(t)
	c := newClient(srv.URL, staticCreds(""))
	ctx := context.Background()

	if err := c.Register(ctx, "bob", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := c.Register(ctx, "bob", "pw")
	var re *backend.RegistrationError
	if !errors.As(err, &re) {
		t.Fatalf("duplicate Register: err = %v, want *RegistrationError", err)
	}
	if re.Detail != "Username already registered" {
		t.Errorf("Detail = %q, want %q", re.Detail, "Username already registered")
	}
	if re.Code != http.StatusBadRequest {
		t.Errorf("Code = %d, want %d", re.Code, http.StatusBadRequest)
	}
}

func TestRegisterUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newClient(url, staticCreds("")).Register(context.Background(), "bob", "pw")
	if err == nil {
		t.Fatal("Register against closed server should fail")
	}
	var re *backend.RegistrationError
	if errors.As(err, &re) {
		t.Errorf("transport failure should not be a RegistrationError: %v", err)
	}
}

func TestIndexesKeepOrder(t *testing.T) {
	fake := backendtest.New()
	fake.Indexes["UK"] = []domain.IndexSnapshot{
		{Symbol: "^FTSE", Name: "FTSE 100", Price: 8254.18, Change: -12.3, Percent: -0.15},
		{Symbol: "^GSPC", Name: "S&P 500", Price: 5431.6, Change: 20.1, Percent: 0.37},
	}
	srv := fake.Serve(t)

	got, err := newClient(srv.URL, staticCreds("")).Indexes(context.Background(), "UK")
	if err != nil {
		t.Fatalf("Indexes: %v", err)
	}
	if len(got) != 2 || got[0].Symbol != "^FTSE" || got[1].Symbol != "^GSPC" {
		t.Errorf("Indexes = %+v, want FTSE then GSPC", got)
	}

	reqs := fake.Requests()
	if reqs[len(reqs)-1].Query != "country=UK" {
		t.Errorf("query = %q, want %q", reqs[len(reqs)-1].Query, "country=UK")
	}
	if reqs[len(reqs)-1].Auth != "" {
		t.Errorf("market endpoint should be unauthenticated, got %q", reqs[len(reqs)-1].Auth)
	}
}

func TestChart(t *testing.T) {
	fake := backendtest.New()
	fake.Charts["AAPL"] = domain.Series{{Date: "2024-06-03", Price: 194.03}, {Date: "2024-06-04", Price: 194.35}}
	srv := fake.Serve(t)
	c := newClient(srv.URL, staticCreds(""))

	series, err := c.Chart(context.Background(), "AAPL", "1mo")
	if err != nil {
		t.Fatalf("Chart: %v", err)
	}
	if len(series) != 2 || series[1].Price != 194.35 {
		t.Errorf("Chart = %+v", series)
	}
	reqs := fake.Requests()
	if reqs[0].Query != "period=1mo" {
		t.Errorf("query = %q, want %q", reqs[0].Query, "period=1mo")
	}

	_, err = c.Chart(context.Background(), "NOPE", "")
	if statusCode(err) != http.StatusNotFound {
		t.Errorf("unknown symbol: err = %v, want 404 StatusError", err)
	}
}

func TestWatchlistAttachesBearer(t *testing.T) {
	fake := backendtest.New()
	fake.SetWatchlist("alice", []string{"MSFT", "AAPL"})
	srv := fake.Serve(t)
	c := newClient(srv.URL, staticCreds(backendtest.TokenFor("alice")))
	ctx := context.Background()

	list, err := c.Watchlist(ctx)
	if err != nil {
		t.Fatalf("Watchlist: %v", err)
	}
	if len(list) != 2 || list[0] != "MSFT" {
		t.Errorf("Watchlist = %v, want [MSFT AAPL]", list)
	}

	if err := c.AddToWatchlist(ctx, "NVDA"); err != nil {
		t.Fatalf("AddToWatchlist: %v", err)
	}
	list, _ = c.Watchlist(ctx)
	if len(list) != 3 || list[2] != "NVDA" {
		t.Errorf("Watchlist after add = %v", list)
	}

	for _, r := range fake.Requests() {
		if r.Auth != "Bearer "+backendtest.TokenFor("alice") {
			t.Errorf("%s %s Authorization = %q", r.Method, r.Path, r.Auth)
		}
	}
}

func TestWatchlistWithoutCredential(t *testing.T) {
	fake := backendtest.New()
	srv := fake.Serve(t)

	_, err := newClient(srv.URL, staticCreds("")).Watchlist(context.Background())
	if statusCode(err) != http.StatusUnauthorized {
		t.Errorf("err = %v, want 401", err)
	}
	if got := fake.Requests()[0].Auth; got != "" {
		t.Errorf("Authorization = %q, want none without a credential", got)
	}
}

func TestChat(t *testing.T) {
	fake := backendtest.New()
	fake.ChatReply = "## AAPL\n**Buy**"
	srv := fake.Serve(t)
	c := newClient(srv.URL, staticCreds(backendtest.TokenFor("alice")))

	got, err := c.Chat(context.Background(), "analyze AAPL")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "## AAPL\n**Buy**" {
		t.Errorf("Chat = %q", got)
	}
	if body := fake.Requests()[0].Body; body != `{"message":"analyze AAPL"}` {
		t.Errorf("request body = %s", body)
	}
}

func TestChatParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL, staticCreds("t")).Chat(context.Background(), "hi"); err == nil {
		t.Error("Chat should fail when the body is not JSON")
	}
}

func TestChatMissingResponseField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detail":"nope"}`))
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL, staticCreds("t")).Chat(context.Background(), "hi"); err == nil {
		t.Error("Chat should fail when the response field is missing")
	}
}
