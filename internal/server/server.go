// Package server serves the period selector page and its JSON API.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"SectorCycles/internal/chart"
	"SectorCycles/internal/export"
	"SectorCycles/internal/model"
)

// Refresher rebuilds the published snapshot.
type Refresher interface {
	Refresh(ctx context.Context) (*model.Snapshot, error)
}

// FailureHistory reports failure counts per ticker across recorded runs.
type FailureHistory interface {
	FailureCounts() (map[string]int, error)
}

// Options configures the optional parts of a Server.
type Options struct {
	// Refresher serves POST /api/refresh. The route answers 501 unless both
	// Refresher and RefreshToken are set.
	Refresher    Refresher
	RefreshToken string
	History      FailureHistory
}

// Server routes HTTP requests onto the current snapshot.
type Server struct {
	source SnapshotSource
	opts   Options
	router *mux.Router
}

// New creates a server.
func New(src SnapshotSource, opts Options) *Server {
	s := &Server{source: src, opts: opts, router: mux.NewRouter()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/periods", s.handlePeriods).Methods(http.MethodGet)
	api.HandleFunc("/chart/{period}", s.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/table/{period}", s.handleTable).Methods(http.MethodGet)
	api.HandleFunc("/failures", s.handleFailures).Methods(http.MethodGet)
	api.HandleFunc("/failures/history", s.handleFailureHistory).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
}

// Handler returns the router wrapped in CORS middleware. Cross-origin
// callers may only read.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, ErrNotReady.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chart.WritePage(w, chart.PageData{
		Periods:  snap.PeriodNames(),
		Selected: snap.DefaultPeriod,
		BuiltAt:  snap.BuiltAt.Format(time.RFC3339),
	}); err != nil {
		log.Printf("[ERROR] render page: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "starting"}
	if snap := s.source.Current(); snap != nil {
		resp = map[string]any{
			"status":   "ok",
			"run_id":   snap.RunID,
			"provider": snap.Provider,
			"built_at": snap.BuiltAt.Format(time.RFC3339),
			"failures": len(snap.Failures),
		}
	}
	writeJSON(w, resp)
}

type periodInfo struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, ErrNotReady.Error())
		return
	}
	periods := make([]periodInfo, len(snap.Periods))
	for i, p := range snap.Periods {
		periods[i] = periodInfo{Name: p.Name, Start: p.Start.Format(model.DateLayout), End: p.End.Format(model.DateLayout)}
	}
	writeJSON(w, map[string]any{
		"periods": periods,
		"default": snap.DefaultPeriod,
		"tickers": snap.Tickers,
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	spec, err := Select(s.source, mux.Vars(r)["period"])
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, spec)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	f, err := frame(s.source.Current(), mux.Vars(r)["period"])
	if err != nil {
		writeLookupError(w, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, map[string]any{
			"period":  f.Period,
			"tickers": f.Tickers(),
			"rows":    export.Rows(f),
		})
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+f.Period+`.csv"`)
		if err := export.WriteCSV(w, f); err != nil {
			log.Printf("[ERROR] write csv %s: %v", f.Period, err)
		}
	case "parquet":
		w.Header().Set("Content-Type", "application/vnd.apache.parquet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+f.Period+`.parquet"`)
		if err := export.WriteParquet(w, f); err != nil {
			log.Printf("[ERROR] write parquet %s: %v", f.Period, err)
		}
	default:
		writeError(w, http.StatusBadRequest, "format must be json, csv or parquet")
	}
}

type failureInfo struct {
	Period string `json:"period"`
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, ErrNotReady.Error())
		return
	}
	out := make([]failureInfo, len(snap.Failures))
	for i, f := range snap.Failures {
		out[i] = failureInfo{Period: f.Period, Ticker: f.Ticker, Reason: f.Reason()}
	}
	writeJSON(w, map[string]any{
		"run_id":   snap.RunID,
		"tickers":  snap.Failures.Tickers(),
		"failures": out,
	})
}

func (s *Server) handleFailureHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeJSON(w, map[string]any{"counts": map[string]int{}})
		return
	}
	counts, err := s.opts.History.FailureCounts()
	if err != nil {
		log.Printf("[ERROR] failure history: %v", err)
		writeError(w, http.StatusInternalServerError, "failure history unavailable")
		return
	}
	writeJSON(w, map[string]any{"counts": counts})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.opts.Refresher == nil || s.opts.RefreshToken == "" {
		writeError(w, http.StatusNotImplemented, "refresh disabled")
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	snap, err := s.opts.Refresher.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, map[string]any{
		"run_id":   snap.RunID,
		"built_at": snap.BuiltAt.Format(time.RFC3339),
		"failures": len(snap.Failures),
	})
}

func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.RefreshToken)) == 1
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownPeriod):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
