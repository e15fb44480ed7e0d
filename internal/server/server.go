// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package server

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/ostafen/doclookup/internal/config"
	"github.com/ostafen/doclookup/internal/env"
	"github.com/ostafen/doclookup/internal/metrics"
	"github.com/ostafen/doclookup/pkg/sysinfo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const DefaultShutdownTimeout = 10 * time.Second

type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server proxies requests to the upstream of the matching site after
// resolving its document.
type Server struct {
	opts   Options
	logger *slog.Logger
	router *mux.Router
}

func New(sites []*config.Site, logger *slog.Logger, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		opts:   opts,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes(sites)
	return s
}

func (s *Server) routes(sites []*config.Site) {
	r := s.router

	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/version", versionHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// routes match in registration order: longest prefix first
	sorted := slices.Clone(sites)
	slices.SortStableFunc(sorted, func(a, b *config.Site) int {
		return cmp.Compare(len(b.Path), len(a.Path))
	})

	for _, site := range sorted {
		r.PathPrefix(site.Path).Handler(Lookup(site)(newProxy(site)))

		s.logger.Info("serving location", "path", site.Path, "upstream", site.Upstream.String(), "lookup", site.Enabled())
	}

	r.Use(withRequestLogger(s.logger))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type versionInfo struct {
	Version   string          `json:"version"`
	BuildTime string          `json:"build_time,omitempty"`
	GitCommit string          `json:"git_commit,omitempty"`
	Host      sysinfo.SysInfo `json:"host"`
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(versionInfo{
		Version:   env.Version,
		BuildTime: env.BuildTime,
		GitCommit: env.CommitHash,
		Host:      sysinfo.Stat(),
	})
}
