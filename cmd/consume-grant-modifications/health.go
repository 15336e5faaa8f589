package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type healthServer struct {
	server *http.Server
	ready  atomic.Bool
	log    *zap.Logger
}

func newHealthServer(addr string, log *zap.Logger) *healthServer {
	h := &healthServer{log: log}
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return h
}

func (h *healthServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// SetReady flips /ready between 200 and 503.
func (h *healthServer) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *healthServer) Start() {
	go func() {
		h.log.Info("Health/Metrics server listening", zap.String("address", h.server.Addr))
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()
}

func (h *healthServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.log.Warn("Health/Metrics server shutdown failed", zap.Error(err))
	}
}
