package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// CodeExchanger trades an OAuth2 authorization code for a stored token.
// *services.SpotifyService implements it.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) error
}

// CallbackHandler handles the OAuth2 authorization code callback.
// Implements the [Handler] interface for registration with a [Router].
type CallbackHandler struct {
	exchanger CodeExchanger
	state     string
	done      chan error
	once      sync.Once

	mu          sync.Mutex
	callbackHit bool
}

// NewCallbackHandler creates a callback handler bound to the given exchanger.
// The state token should be cryptographically random for CSRF protection.
func NewCallbackHandler(exchanger CodeExchanger, state string) *CallbackHandler {
	return &CallbackHandler{
		exchanger: exchanger,
		state:     state,
		done:      make(chan error, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the state parameter, exchanges the authorization code through the
// bound exchanger, and signals completion on the Done channel. Only the first
// callback is processed.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	if state := r.URL.Query().Get("state"); state != h.state {
		h.send(fmt.Errorf("invalid state parameter"))
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		h.send(fmt.Errorf("authorization failed: %s - %s", errParam, errDesc))
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	if err := h.exchanger.Exchange(r.Context(), code); err != nil {
		h.send(fmt.Errorf("token exchange failed: %w", err))
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.send(nil)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, callbackPage)
}

// send signals flow completion exactly once.
func (h *CallbackHandler) send(err error) {
	h.once.Do(func() {
		h.done <- err
		close(h.done)
	})
}

// Done returns a channel that receives the flow outcome: nil on success, the
// failure otherwise. The channel receives exactly one value and is closed.
func (h *CallbackHandler) Done() <-chan error {
	return h.done
}

const callbackPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>&#10003; Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
