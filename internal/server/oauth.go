package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"
)

// OAuthResult carries the outcome of the authorization-code flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the identity provider's redirect exactly once: it
// checks the state parameter, exchanges the authorization code for a token,
// and delivers the result on a channel. Later callbacks are rejected so a
// replayed redirect cannot race the exchange.
type OAuthHandler struct {
	config  *oauth2.Config
	state   string
	results chan OAuthResult
	once    sync.Once
	claimed atomic.Bool
}

// NewOAuthHandler creates a handler expecting the given state token. The
// state should be cryptographically random for CSRF protection.
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		config:  config,
		state:   state,
		results: make(chan OAuthResult, 1),
	}
}

// ServeHTTP handles the provider's redirect.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.claimed.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusConflict)
		return
	}

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.deliver(OAuthResult{err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("authorization failed: %s - %s",
			query.Get("error"), query.Get("error_description"))
		h.deliver(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.deliver(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.deliver(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// deliver sends the result exactly once and closes the channel.
func (h *OAuthHandler) deliver(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result returns the channel carrying the single flow outcome.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

const successPage = `
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
        h1 { color: #7C3AED; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>&#10003; Signed in to vidmark</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
