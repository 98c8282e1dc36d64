// Package server provides the localhost HTTP plumbing the CLI needs for the
// identity-provider login flow.
//
// [BasicRouter] is a method-filtering router over net/http's ServeMux with a
// small [Middleware] stack (last added executes first).
//
// [OAuthHandler] implements the OAuth2 authorization code callback: it
// validates the state parameter, exchanges the code for a token, and sends
// the result through a channel. It processes one callback only, so a
// replayed redirect cannot race the exchange.
//
// `vidmark auth login` runs [Login]: a temporary HTTP server starts on the
// configured redirect host, the browser opens to the identity provider's
// authorize URL, and the server shuts down after the callback delivers the
// token. The token is then persisted by the shared token store and used for
// both the push-channel handshake and history requests.
package server
