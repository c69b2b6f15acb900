package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"golang.org/x/oauth2"

	"github.com/desertthunder/labeltree/internal/shared"
)

// Exchanger trades an authorization code for a token. [services.Session] implements it.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// AuthOutcome is what the authorization redirect produced: a token, or why there is none.
type AuthOutcome struct {
	Token *oauth2.Token
	Err   error
}

// AuthCallback serves the single redirect of an interactive login. Only the first request
// is handled; its outcome is delivered on [AuthCallback.Done].
type AuthCallback struct {
	exchanger Exchanger
	state     string
	used      atomic.Bool
	done      chan AuthOutcome
}

// NewAuthCallback accepts a redirect carrying state and exchanges its code through exchanger.
func NewAuthCallback(exchanger Exchanger, state string) *AuthCallback {
	return &AuthCallback{
		exchanger: exchanger,
		state:     state,
		done:      make(chan AuthOutcome, 1),
	}
}

func (c *AuthCallback) Routes() []string {
	return []string{"/callback"}
}

func (c *AuthCallback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !c.used.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	tok, status, err := c.exchange(r)
	c.done <- AuthOutcome{Token: tok, Err: err}
	close(c.done)

	if err != nil {
		http.Error(w, http.StatusText(status)+": "+err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, connectedPage)
}

// exchange checks the redirect and trades its code. status is what the browser is shown.
func (c *AuthCallback) exchange(r *http.Request) (*oauth2.Token, int, error) {
	q := r.URL.Query()
	switch {
	case q.Get("state") != c.state:
		return nil, http.StatusBadRequest, fmt.Errorf("%w: state mismatch", shared.ErrAuthFailed)
	case q.Get("code") == "":
		return nil, http.StatusBadRequest, fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
	}

	tok, err := c.exchanger.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return tok, http.StatusOK, nil
}

// Done receives exactly one outcome and is then closed.
func (c *AuthCallback) Done() <-chan AuthOutcome {
	return c.done
}

const connectedPage = `<!DOCTYPE html>
<html>
<head><title>labeltree: Spotify connected</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 20vh; color: #444">
  <h1 style="color: #1DB954">Spotify connected</h1>
  <p>Playlist export is ready. Return to the terminal to continue.</p>
</body>
</html>
`
