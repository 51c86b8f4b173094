// Package health serves liveness, readiness, metrics and the Green API
// webhook on the gateway port.
package health

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/greenapi"
	"github.com/dotsetgreg/leadbot/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	webhookBodyLimit = 1 << 20
	shutdownTimeout  = 5 * time.Second
)

type Check func(ctx context.Context) error

type Options struct {
	Gatherer     prometheus.Gatherer
	WebhookToken string
	// Webhook receives decoded notifications; the route is absent when nil.
	Webhook func(greenapi.Webhook) bool
}

type Server struct {
	srv     *http.Server
	opts    Options
	started time.Time

	mu     sync.RWMutex
	checks map[string]Check
}

func NewServer(host string, port int, opts Options) *Server {
	s := &Server{
		opts:    opts,
		started: time.Now(),
		checks:  make(map[string]Check),
	}
	s.srv = &http.Server{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// RegisterCheck adds a readiness check. A failing check turns /ready into 503.
func (s *Server) RegisterCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	if s.opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.opts.Webhook != nil {
		mux.HandleFunc("POST /webhook/greenapi", s.handleWebhook)
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("gateway", "HTTP server listening", map[string]interface{}{
			"addr": s.srv.Addr,
		})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := checks[name](r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": results,
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebhookToken != "" {
		got := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	var hook greenapi.Webhook
	if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	accepted := s.opts.Webhook(hook)
	logger.DebugCF("gateway", "Webhook received", map[string]interface{}{
		"type":       hook.TypeWebhook,
		"message_id": hook.IDMessage,
		"accepted":   accepted,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "accepted": accepted})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
