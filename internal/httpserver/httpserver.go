// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpserver holds the middleware chain and graceful-shutdown
// wiring shared by the escalation, receiver, and tarpit HTTP services.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
)

// NewRouter builds a chi.Mux with the standard middleware chain: a
// per-request logger in context, HTTP metrics, access logging, remote
// address and user-agent fields, request IDs (echoed in the X-Request-Id
// response header), and panic recovery.
func NewRouter(logger zerolog.Logger, metrics *metricsx.Store) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		hlog.NewHandler(logger),
		metrics.HTTPMiddleware,
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		hlog.RemoteAddrHandler("ip"),
		hlog.UserAgentHandler("user_agent"),
		middleware.RequestID,
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
				next.ServeHTTP(w, r)
			})
		},
		middleware.Recoverer,
	)
	return r
}

// Serve runs srv until an interrupt or SIGTERM arrives, then gives
// in-flight handlers shutdownTimeout to finish before returning.
func Serve(srv *http.Server, log *zerolog.Logger, shutdownTimeout time.Duration) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-stop:
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}
