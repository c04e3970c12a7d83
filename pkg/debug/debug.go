package debug

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeeDigitalWorks/zaps3/pkg/logger"
	"github.com/LeeDigitalWorks/zaps3/pkg/utils"
)

// Global registry for client metrics
var globalRegistry = prometheus.NewRegistry()

// Registry returns the Prometheus registry for registering custom metrics.
// Metrics registered here will be exported on /metrics alongside default metrics.
func Registry() prometheus.Registerer {
	return globalRegistry
}

// Gatherer returns the registry for reading metrics back.
func Gatherer() prometheus.Gatherer {
	return globalRegistry
}

func GetMux() *http.ServeMux {
	mux := http.NewServeMux()

	gatherers := prometheus.Gatherers{
		prometheus.DefaultGatherer,
		globalRegistry,
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	mux.Handle("/debug/", http.HandlerFunc(pprof.Index))
	mux.Handle("/debug/cmdline", http.HandlerFunc(pprof.Cmdline))
	mux.Handle("/debug/goroutine/", pprof.Handler("goroutine"))
	mux.Handle("/debug/heap/", pprof.Handler("heap"))
	mux.Handle("/debug/profile", http.HandlerFunc(pprof.Profile))
	mux.Handle("/debug/trace", http.HandlerFunc(pprof.Trace))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

// Server serves GetMux on its own listener.
type Server struct {
	srv  *http.Server
	addr string
}

// Start serves the debug mux on addr until Shutdown.
func Start(addr string) (*Server, error) {
	ln, err := utils.NewListener(addr, 0)
	if err != nil {
		return nil, err
	}

	s := &Server{srv: &http.Server{Handler: GetMux()}, addr: ln.Addr().String()}
	go func() {
		logger.Info().Str("http_addr", s.addr).Msg("Starting debug server")
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("debug server stopped")
		}
	}()
	return s, nil
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
