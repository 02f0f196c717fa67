package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"b5factor/internal/config"
	"b5factor/internal/db"
	"b5factor/internal/levels"
	"b5factor/internal/market"
)

// Server is the HTTP layer over the derived-row service and the trade store.
type Server struct {
	cfg        *config.Config
	store      *db.DB
	firstClose *db.FirstCloseDB
	svc        *levels.Service
	hub        *Hub
}

// NewServer creates a Server. firstClose may be nil when the producer's DB is
// not available; stats then report zeros.
func NewServer(cfg *config.Config, store *db.DB, firstClose *db.FirstCloseDB, svc *levels.Service) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		firstClose: firstClose,
		svc:        svc,
		hub:        newHub(svc),
	}
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/broker-limits", s.handleBrokerLimits)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /exports/", http.StripPrefix("/exports/", http.FileServer(http.Dir(s.cfg.ExportDir))))
	return corsMiddleware(mux)
}

// StartStream launches the snapshot-change broadcaster.
func (s *Server) StartStream() {
	go s.hub.run()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := market.Now()
	writeJSON(w, map[string]any{
		"ok":           true,
		"trade_mode":   s.cfg.TradeMode,
		"live_enabled": s.cfg.LiveArmed(),
		"ist_time":     now.Format("15:04:05"),
		"ist_datetime": now.Format("2006-01-02 15:04:05"),
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func clampLimit(raw string, def, ceil int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > ceil {
		return ceil
	}
	return n
}
