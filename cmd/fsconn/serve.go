package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
	"github.com/arthur-debert/fsconn/pkg/fsconn/provider"
	"github.com/arthur-debert/fsconn/pkg/fsconn/uri"
)

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve resolution and metrics over HTTP",
		Long:  "Serve /v1/resolve, /v1/uri and prometheus /metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			cfg, env, err := newEnvironment(reg)
			if err != nil {
				return err
			}
			defer env.Registry.CloseAll()
			if addr == "" {
				addr = cfg.Metrics.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := &http.Server{
				Addr:              addr,
				Handler:           newRouter(env, reg),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				env.Logger.Info().Str("addr", addr).Msg("serving")
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config metrics.addr)")

	return cmd
}

type resolveResponse struct {
	Path     string            `json:"path"`
	Absolute string            `json:"absolute"`
	Location location.Location `json:"location"`
	Exists   bool              `json:"exists"`
}

type uriResponse struct {
	URI string `json:"uri"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	env provider.Environment
}

func newRouter(env provider.Environment, reg *prometheus.Registry) http.Handler {
	s := &handlers{env: env}
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Route("/v1", func(router chi.Router) {
		router.Get("/resolve", s.resolve)
		router.Get("/uri", s.uri)
	})
	return router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		valErr *location.ValidationError
		resErr *provider.ResolutionError
		expErr *uri.ExportError
	)
	switch {
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case errors.As(err, &resErr), errors.As(err, &expErr):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func queryLocation(r *http.Request) (location.Location, error) {
	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		category = location.Local.String()
	}
	flags := locationFlags{category: category, specifier: q.Get("specifier")}
	return flags.location(q.Get("path"))
}

func (s *handlers) resolve(w http.ResponseWriter, r *http.Request) {
	loc, err := queryLocation(r)
	if err != nil {
		writeError(w, err)
		return
	}
	requireExisting := r.URL.Query().Get("require_existing") == "true"
	err = withPath(s.env, loc, requireExisting, func(_ *provider.Factory, p *filesystem.Path) error {
		exists, err := filesystem.Exists(p)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, resolveResponse{
			Path:     p.String(),
			Absolute: p.ToAbsolute().String(),
			Location: p.ToLocation(),
			Exists:   exists,
		})
		return nil
	})
	if err != nil {
		writeError(w, err)
	}
}

func (s *handlers) uri(w http.ResponseWriter, r *http.Request) {
	loc, err := queryLocation(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := uri.ExporterID(r.URL.Query().Get("exporter"))
	if id == "" {
		id = uri.DefaultID
	}
	err = withPath(s.env, loc, false, func(f *provider.Factory, p *filesystem.Path) error {
		e, err := f.Connection().Exporter(id, uri.Config{Timeout: s.env.URLTimeout})
		if err != nil {
			return err
		}
		u, err := e.ToURI(p)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, uriResponse{URI: u.String()})
		return nil
	})
	if err != nil {
		writeError(w, err)
	}
}
