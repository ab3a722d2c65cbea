//go:build !solution

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.com/slon/rwgate/rwlock"
	"gitlab.com/slon/rwgate/scenario"
)

const (
	maxScenarioBytes   = 1 << 20
	maxScenarioTimeout = 30 * time.Second
	// uploadedLock names the lock of every uploaded run, so that metric
	// labels stay bounded by the catalogue.
	uploadedLock = "uploaded"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scenario runs and lock metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			handler, err := newHandler(a.log, reg, a.lockOptions())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a.log, addr, handler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func serve(ctx context.Context, log *zap.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("server stopped")
	return nil
}

type server struct {
	log     *zap.Logger
	runner  *scenario.Runner
	uploads *scenario.Runner
}

func newHandler(log *zap.Logger, reg *prometheus.Registry, lockOpts []rwlock.Option) (http.Handler, error) {
	metrics, err := rwlock.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	opts := append([]rwlock.Option{rwlock.WithMetrics(metrics)}, lockOpts...)
	s := &server{
		log:    log,
		runner: &scenario.Runner{Logger: log, LockOptions: opts},
		uploads: &scenario.Runner{
			Logger:      log,
			LockOptions: append(opts[:len(opts):len(opts)], rwlock.WithName(uploadedLock)),
		},
	}

	r := chi.NewRouter()
	r.Use(logRequests(log))
	r.Get("/scenarios", s.listScenarios)
	r.Post("/scenarios/{name}/run", s.runBuiltin)
	r.Post("/run", s.runUploaded)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r, nil
}

// logRequests логирует каждый запрос после обработки
func logRequests(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			log.Info("request processed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", m.Code),
				zap.Duration("latency", m.Duration),
				zap.Int64("written", m.Written),
			)
		})
	}
}

type scenarioInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Actors      int    `json:"actors"`
}

func (s *server) listScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := scenario.Catalogue()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	infos := make([]scenarioInfo, 0, len(scenarios))
	for _, sc := range scenarios {
		infos = append(infos, scenarioInfo{Name: sc.Name, Description: sc.Description, Actors: len(sc.Actors)})
	}
	s.writeJSON(w, http.StatusOK, infos)
}

func (s *server) runBuiltin(w http.ResponseWriter, r *http.Request) {
	sc, err := scenario.Lookup(chi.URLParam(r, "name"))
	if errors.Is(err, scenario.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	} else if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.run(w, r, s.runner, sc)
}

func (s *server) runUploaded(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxScenarioBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	sc, err := scenario.Parse(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if sc.Timeout.Std() > maxScenarioTimeout {
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("%w %q: timeout %v exceeds %v", scenario.ErrInvalid, sc.Name, sc.Timeout.Std(), maxScenarioTimeout))
		return
	}
	s.run(w, r, s.uploads, sc)
}

func (s *server) run(w http.ResponseWriter, r *http.Request, runner *scenario.Runner, sc *scenario.Scenario) {
	report, err := runner.Run(r.Context(), sc)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to write response", zap.Error(err))
	}
}
