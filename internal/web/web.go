// Package web is the optional ops listener for long corpus runs: liveness
// and Prometheus metrics only.
package web

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/bookpipe/internal/metrics"
)

type Server struct {
    addr string
    srv  *http.Server
}

func New(addr string) *Server {
    return &Server{addr: addr}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.Handle("/metrics", metrics.Handler())
}

// Start runs the listener in the background. A nil Server or empty address is
// a no-op so callers can wire it unconditionally.
func (s *Server) Start() {
    if s == nil || s.addr == "" {
        return
    }
    mux := http.NewServeMux()
    s.RegisterRoutes(mux)
    s.srv = &http.Server{Addr: s.addr, Handler: mux}
    go func() {
        log.Info().Str("addr", s.addr).Msg("ops listener started")
        if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Error().Err(err).Msg("ops listener failed")
        }
    }()
}

func (s *Server) Shutdown() {
    if s == nil || s.srv == nil {
        return
    }
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = s.srv.Shutdown(ctx)
}
