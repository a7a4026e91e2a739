// Package server exposes the manual sync trigger over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/techreview-es/mgz-harvester/internal/logger"
)

// Syncer runs one sync pass.
type Syncer interface {
	PerformSync(ctx context.Context, limit, offset int) (int, error)
}

// Options configures the trigger.
type Options struct {
	Addr          string
	DefaultLimit  int
	DefaultOffset int
	// WriteTimeout bounds a whole request, sync included.
	WriteTimeout time.Duration
}

// Server serves GET /sync and GET /healthz.
type Server struct {
	syncer Syncer
	opts   Options
	log    logger.Logger
	http   *http.Server
}

// New returns a Server for syncer.
func New(syncer Syncer, opts Options, log logger.Logger) *Server {
	s := &Server{syncer: syncer, opts: opts, log: logger.Ensure(log)}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
	}
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sync", s.handleSync)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), s.opts.DefaultLimit)
	offset := intParam(q.Get("offset"), s.opts.DefaultOffset)

	s.log.InfoObj("manual sync requested", "http", map[string]any{
		"limit":  limit,
		"offset": offset,
		"remote": r.RemoteAddr,
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	count, err := s.syncer.PerformSync(r.Context(), limit, offset)
	if err != nil {
		s.log.ErrorObj("manual sync failed", "http_error", map[string]any{"error": err.Error()})
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	_, _ = fmt.Fprintf(w, "Manual sync finished. Synced %d articles.", count)
}

// intParam falls back to def for missing, unparsable or zero values.
func intParam(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n == 0 {
		return def
	}
	return n
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.InfoObj("http server listening", "http", map[string]any{"addr": s.opts.Addr})
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	<-errCh
	return nil
}
