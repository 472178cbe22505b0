package server

import (
	"io"
	"net/http"

	"github.com/chrisvdg/contentserver/site"
	gh "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Renderer renders a named template with a flat string context
type Renderer interface {
	Render(id string, ctx map[string]string) ([]byte, error)
}

// Site holds what a worker serves during one epoch
type Site struct {
	Content  ContentLoader
	Renderer Renderer
	Assets   *site.Assets
	// Routes are the asset routes, served from Assets
	Routes   []string
	Hostname string
	Metrics  *Metrics
	// AccessLog receives combined log format lines, nothing is logged when nil
	AccessLog io.Writer
}

// NewRouter returns the handler serving s
func NewRouter(s *Site) http.Handler {
	if s.Metrics == nil {
		s.Metrics = NewMetrics()
	}
	r := mux.NewRouter()
	h := newHandlers(s)

	r.Handle("/", s.Metrics.instrument("index", http.HandlerFunc(h.IndexHandler))).Methods("GET").Name("index")
	assets := s.Metrics.instrument("asset", http.HandlerFunc(h.AssetHandler))
	for _, route := range s.Routes {
		if route == "" || route == "/" {
			continue
		}
		r.Handle(route, assets).Methods("GET")
	}
	r.Handle("/metrics", s.Metrics.Handler()).Methods("GET").Name("metrics")
	r.Use(securityHeaders)

	var handler http.Handler = gh.CompressHandler(r)
	if s.AccessLog != nil {
		handler = gh.CombinedLoggingHandler(s.AccessLog, handler)
	}

	return handler
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.Header().Set("X-Content-Type-Options", "nosniff")
		if req.TLS != nil {
			res.Header().Set("Strict-Transport-Security", "max-age=63072000")
		}
		next.ServeHTTP(res, req)
	})
}
