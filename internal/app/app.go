// Package app wires the session, the view registry and the panel controllers
// into the login/app lifecycle.
package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"stockdesk/internal/backend"
	"stockdesk/internal/domain"
	"stockdesk/internal/view"
)

// Messages shown in the auth-error region.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgRegistered         = "Registered! Please login."
	MsgRegisterFailed     = "Error registering"
	MsgSessionSaveFailed  = "Could not save session"
)

// Session is the credential holder.
type Session interface {
	Credential() (string, bool)
	SetCredential(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Authenticator exchanges credentials with the backend.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) error
}

// MarketPanel refreshes the index dashboard.
type MarketPanel interface {
	Refresh(ctx context.Context, region string) error
	RefreshKeepSelection(ctx context.Context, region string) error
	Reset()
}

// Watchlist refreshes the saved symbols.
type Watchlist interface {
	Refresh(ctx context.Context) error
	Reset()
}

// Resetter drops a controller's state.
type Resetter interface {
	Reset()
}

// Deps holds the collaborators of an App.
type Deps struct {
	Session       Session
	Views         *view.Registry
	Auth          Authenticator
	Market        MarketPanel
	Watchlist     Watchlist
	Chart         Resetter
	Chat          Resetter
	DefaultRegion string
	Log           *slog.Logger
}

// App decides which surface is shown and drives the initial data loads.
type App struct {
	Deps
}

// New creates an App.
func New(deps Deps) *App {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &App{Deps: deps}
}

// Start shows the app surface when a credential is already present and the
// login surface otherwise.
func (a *App) Start(ctx context.Context) error {
	if _, ok := a.Session.Credential(); ok {
		a.Log.Info("resuming session")
		return a.ShowApp(ctx)
	}
	a.Views.Hide(view.AppSurface)
	a.Views.Show(view.LoginSurface)
	return nil
}

// Region returns the selected region, falling back to the default.
func (a *App) Region() string {
	if r := a.Views.Value(view.RegionSelector); r != "" {
		return r
	}
	return a.DefaultRegion
}

// ShowApp switches to the app surface and loads the market dashboard and
// the watchlist concurrently. Neither load blocks the other.
func (a *App) ShowApp(ctx context.Context) error {
	a.Views.Hide(view.LoginSurface)
	a.Views.Show(view.AppSurface)

	region := a.Region()
	var g errgroup.Group
	g.Go(func() error { return ignoreStale(a.Market.Refresh(ctx, region)) })
	g.Go(func() error { return ignoreStale(a.Watchlist.Refresh(ctx)) })
	return g.Wait()
}

// Login authenticates with the username and password inputs. Any failure
// shows MsgInvalidCredentials and leaves the session untouched.
func (a *App) Login(ctx context.Context) error {
	username := a.Views.Value(view.UsernameInput)
	password := a.Views.Value(view.PasswordInput)

	token, err := a.Auth.Login(ctx, username, password)
	if err != nil {
		a.Log.Warn("login failed", "username", username, "error", err)
		a.Views.SetValue(view.AuthError, MsgInvalidCredentials)
		return err
	}
	if err := a.Session.SetCredential(ctx, token); err != nil {
		a.Log.Error("saving session", "error", err)
		a.Views.SetValue(view.AuthError, MsgSessionSaveFailed)
		return err
	}

	a.Log.Info("logged in", "username", username)
	a.Views.SetValue(view.AuthError, "")
	a.Views.SetValue(view.PasswordInput, "")
	return a.ShowApp(ctx)
}

// Register creates an account from the username and password inputs and
// reports the outcome in the auth-error region. It never logs the user in.
func (a *App) Register(ctx context.Context) error {
	username := a.Views.Value(view.UsernameInput)
	password := a.Views.Value(view.PasswordInput)

	err := a.Auth.Register(ctx, username, password)
	var regErr *backend.RegistrationError
	switch {
	case err == nil:
		a.Log.Info("registered", "username", username)
		a.Views.SetValue(view.AuthError, MsgRegistered)
	case errors.As(err, &regErr):
		a.Log.Warn("registration rejected", "username", username, "detail", regErr.Detail)
		a.Views.SetValue(view.AuthError, regErr.Detail)
	default:
		a.Log.Warn("registration failed", "username", username, "error", err)
		a.Views.SetValue(view.AuthError, MsgRegisterFailed)
	}
	return err
}

// Logout clears the session and every panel, then shows the login surface.
func (a *App) Logout(ctx context.Context) error {
	err := a.Session.Clear(ctx)
	if err != nil {
		a.Log.Error("clearing session", "error", err)
	}

	a.Chart.Reset()
	a.Chat.Reset()
	a.Market.Reset()
	a.Watchlist.Reset()

	a.Views.SetValue(view.PasswordInput, "")
	a.Views.SetValue(view.AuthError, "")
	a.Views.SetValue(view.Status, "")
	a.Views.Hide(view.AppSurface)
	a.Views.Show(view.LoginSurface)
	a.Log.Info("logged out")
	return err
}

func ignoreStale(err error) error {
	if errors.Is(err, domain.ErrStale) {
		return nil
	}
	return err
}
