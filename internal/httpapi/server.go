package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	apimw "github.com/hamed0406/uptimeworker/internal/httpapi/middleware"
	"github.com/hamed0406/uptimeworker/internal/metrics"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/scheduler"
)

// Sweeper starts an out-of-band sweep.
type Sweeper interface {
	TriggerSweep() (int, error)
}

type Server struct {
	Logger  *zap.Logger
	Store   repo.RecordStore
	Sweeper Sweeper
	Metrics *metrics.Metrics
}

func NewServer(l *zap.Logger, store repo.RecordStore, sw Sweeper, m *metrics.Metrics) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Store: store, Sweeper: sw, Metrics: m}
}

// Router mounts the read-only status API. An empty origins list allows any
// origin; rpm <= 0 disables rate limiting.
func (s *Server) Router(keys apimw.Keys, origins []string, rpm, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if len(origins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(rpm, burst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/checks", s.handleListChecks)
		r.Get("/checks/{id}", s.handleGetCheck)
		r.With(apimw.RequireAdmin(keys)).Post("/sweep", s.handleSweep)
	})

	return r
}

// checkView is one stored record plus its validation verdict.
type checkView struct {
	ID     string      `json:"id"`
	Valid  bool        `json:"valid"`
	Errors []string    `json:"errors,omitempty"`
	Record repo.Record `json:"record"`
}

func view(id string, rec repo.Record) checkView {
	v := checkView{ID: id, Record: rec, Valid: true}
	if _, err := domain.ValidateRecord(rec); err != nil {
		v.Valid = false
		for _, fe := range domain.FieldErrors(err) {
			v.Errors = append(v.Errors, fe.Error())
		}
	}
	return v
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Store.List(r.Context(), repo.KindChecks)
	if err != nil {
		s.Logger.Warn("api_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]checkView, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Store.Read(r.Context(), repo.KindChecks, id)
		if err != nil {
			// removed between List and Read
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			s.Logger.Warn("api_read_error", zap.String("check_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "read error")
			return
		}
		out = append(out, view(id, rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.Store.Read(r.Context(), repo.KindChecks, id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		s.Logger.Warn("api_read_error", zap.String("check_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	writeJSON(w, http.StatusOK, view(id, rec))
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.Sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	n, err := s.Sweeper.TriggerSweep()
	if errors.Is(err, scheduler.ErrNotRunning) {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	if err != nil {
		s.Logger.Warn("api_sweep_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sweep error")
		return
	}
	s.Logger.Info("manual_sweep", zap.Int("checks", n))
	writeJSON(w, http.StatusAccepted, map[string]int{"started": n})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
