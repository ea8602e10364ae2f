package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultPort is used when the configuration leaves the metrics port unset.
const defaultPort = 9090

// NewHTTPServer creates an HTTP server exposing the default Prometheus
// registry at /metrics.
func NewHTTPServer(address string, port int) *http.Server {
	if port == 0 {
		port = defaultPort
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", address, port),
		Handler: mux,
	}
}
