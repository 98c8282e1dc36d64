package server

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

// Middleware wraps an [http.Handler] with additional behavior.
type Middleware func(http.Handler) http.Handler

// BasicRouter is a minimal method-filtering router over [http.ServeMux],
// just enough to serve the login callback.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use adds [Middleware] to the stack. Middleware wraps handlers in reverse
// order, so the last one added executes first.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the given HTTP method and path, wrapped
// with the middleware stack. Requests with other methods get a 405.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	wrapped := r.apply(handler)

	r.mux.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !strings.EqualFold(req.Method, method) {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wrapped.ServeHTTP(w, req)
	}))
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *BasicRouter) apply(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}
	return wrapped
}

// RequestLogger logs each request hitting the callback server.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Debug("callback request", "method", req.Method, "path", req.URL.Path)
			next.ServeHTTP(w, req)
		})
	}
}
