package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides an HTTP server for Prometheus metrics.
type Server struct {
	address  string
	path     string
	gatherer prometheus.Gatherer
	server   *http.Server
}

// NewServer creates a metrics server serving gatherer at path. A nil
// gatherer falls back to the default registry.
func NewServer(address, path string, gatherer prometheus.Gatherer) *Server {
	if path == "" {
		path = "/metrics"
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		address:  address,
		path:     path,
		gatherer: gatherer,
	}
}

// Start starts the metrics server and blocks until it stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:    s.address,
		Handler: mux,
	}

	return s.server.ListenAndServe()
}

// Stop stops the metrics server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
