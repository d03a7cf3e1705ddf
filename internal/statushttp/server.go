// Package statushttp serves the proxy's read-only status surface:
// GET /stats renders a healthy-upstream count and an HTML table of
// per-upstream counters (no aggregate totals), GET /admin reports process
// health as a 200/500 status code.
package statushttp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/altiscale/transferaccelerator/internal/proxycore"
)

// Server renders the status surface for a single Proxy.
type Server struct {
	*proxycore.HTTPServer

	proxy   *proxycore.Proxy
	version string
}

// NewServer creates a Server for proxy, reporting version in /admin's body.
func NewServer(logger proxycore.Logger, proxy *proxycore.Proxy, version string) *Server {
	return &Server{
		HTTPServer: proxycore.NewHTTPServer(logger.Fork("status")),
		proxy:      proxy,
		version:    version,
	}
}

// Router builds the chi.Router that serves /stats and /admin.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/stats", s.handleStats)
	r.Get("/admin", s.handleAdmin)
	return r
}

// ListenAndServe starts serving the status surface on addr until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return s.HTTPServer.ListenAndServe(ctx, addr, s.Router())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(renderStatsPage(s.proxy)))
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if s.proxy.HealthyUpstreamCount() > 0 {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	fmt.Fprintf(w, `{ "version" : %q }`, s.version)
}
