// Package backendtest provides an in-process fake of the advisor API for
// tests.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"stockdesk/internal/domain"
)

// Request records one call received by the fake.
type Request struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

// Fake is a configurable advisor API. Fields may be set before serving;
// use the setters once requests are in flight.
type Fake struct {
	mu       sync.Mutex
	users    map[string]string
	watch    map[string][]string
	requests []Request

	Indexes   map[string][]domain.IndexSnapshot
	Charts    map[string]domain.Series
	ChatReply string

	// Status forces a response status for a "METHOD /path" key.
	Status map[string]int

	// Gate, when set, is called before a request is handled. Tests use it to
	// hold responses and control completion order.
	Gate func(r *http.Request)
}

// New returns a Fake with one registered user "alice"/"secret".
func New() *Fake {
	return &Fake{
		users:   map[string]string{"alice": "secret"},
		watch:   make(map[string][]string),
		Indexes: make(map[string][]domain.IndexSnapshot),
		Charts:  make(map[string]domain.Series),
		Status:  make(map[string]int),
	}
}

// Serve starts an httptest server for f, closed when the test ends.
func (f *Fake) Serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.Router())
	t.Cleanup(srv.Close)
	return srv
}

// Router returns the chi router implementing the API.
func (f *Fake) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(f.record)
	r.Post("/auth/token", f.handleToken)
	r.Post("/auth/register", f.handleRegister)
	r.Get("/market/indexes", f.handleIndexes)
	r.Get("/market/chart/{symbol}", f.handleChart)
	r.Group(func(r chi.Router) {
		r.Use(f.requireToken)
		r.Get("/watchlist", f.handleGetWatchlist)
		r.Post("/watchlist", f.handleAddWatchlist)
		r.Post("/agent/chat", f.handleChat)
	})
	return r
}

// Requests returns a copy of the requests received so far.
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// SetWatchlist replaces the stored watchlist of user.
func (f *Fake) SetWatchlist(user string, symbols []string) {
	f.mu.Lock()
	f.watch[user] = append([]string(nil), symbols...)
	f.mu.Unlock()
}

// SetStatus forces status for key ("METHOD /path").
func (f *Fake) SetStatus(key string, status int) {
	f.mu.Lock()
	f.Status[key] = status
	f.mu.Unlock()
}

// TokenFor is the access token the fake issues for user.
func TokenFor(user string) string {
	return "tok-" + user
}

func (f *Fake) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body strings.Builder
		if r.Body != nil && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var v any
			if err := json.NewDecoder(r.Body).Decode(&v); err == nil {
				b, _ := json.Marshal(v)
				body.Write(b)
				r.Body = http.NoBody
				r = r.WithContext(withJSON(r.Context(), v))
			}
		}
		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   body.String(),
		})
		gate := f.Gate
		status := f.Status[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if gate != nil {
			gate(r)
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"detail": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *Fake) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		user, ok := f.userForAuth(auth)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (f *Fake) userForAuth(auth string) (string, bool) {
	tok, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for u := range f.users {
		if TokenFor(u) == tok {
			return u, true
		}
	}
	return "", false
}

func (f *Fake) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "bad form"})
		return
	}
	user, pass := r.PostForm.Get("username"), r.PostForm.Get("password")
	f.mu.Lock()
	want, ok := f.users[user]
	f.mu.Unlock()
	if !ok || want != pass {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": TokenFor(user), "token_type": "bearer"})
}

func (f *Fake) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, _ := jsonFrom(r.Context()).(map[string]any)
	user, _ := body["username"].(string)
	pass, _ := body["password"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[user]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Username already registered"})
		return
	}
	f.users[user] = pass
	writeJSON(w, http.StatusOK, map[string]string{"message": "User created successfully"})
}

func (f *Fake) handleIndexes(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	f.mu.Lock()
	data, ok := f.Indexes[country]
	if !ok {
		data = f.Indexes["US"]
	}
	f.mu.Unlock()
	if data == nil {
		data = []domain.IndexSnapshot{}
	}
	writeJSON(w, http.StatusOK, data)
}

func (f *Fake) handleChart(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	f.mu.Lock()
	series, ok := f.Charts[symbol]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Symbol not found"})
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (f *Fake) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	f.mu.Lock()
	list := append([]string{}, f.watch[user]...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (f *Fake) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	symbol := r.URL.Query().Get("symbol")
	f.mu.Lock()
	found := false
	for _, s := range f.watch[user] {
		if s == symbol {
			found = true
			break
		}
	}
	if !found {
		f.watch[user] = append(f.watch[user], symbol)
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Symbol added"})
}

func (f *Fake) handleChat(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	reply := f.ChatReply
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
