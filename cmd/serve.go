package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/metrics"
	"github.com/sells-group/zoning-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initAnalysis("serve", prometheus.NewRegistry())
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(env.Runner, env.Metrics, cfg.Server.MaxInFlight, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// analysisRequest is the POST /v1/analyses body.
type analysisRequest struct {
	Address      string                    `json:"address"`
	Measurements model.ProjectMeasurements `json:"measurements"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// newRouter builds the HTTP surface. At most maxInFlight analyses run at
// once; excess requests get 503 instead of queueing.
func newRouter(a analyzer, m *metrics.Metrics, maxInFlight int, origins []string) http.Handler {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	sem := make(chan struct{}, maxInFlight)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(m.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Post("/v1/analyses", func(w http.ResponseWriter, r *http.Request) {
		var req analysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
		if strings.TrimSpace(req.Address) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "address is required")
			return
		}

		select {
		case sem <- struct{}{}:
		default:
			writeError(w, http.StatusServiceUnavailable, "busy", "too many analyses in flight")
			return
		}
		defer func() { <-sem }()

		m.InFlight().Inc()
		defer m.InFlight().Dec()

		report, err := runWithTimeout(r.Context(), a, req.Address, req.Measurements)
		if err != nil {
			kind := model.Kind(err)
			zap.L().Warn("analysis request failed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("address", req.Address),
				zap.String("kind", kind),
				zap.Error(err),
			)
			writeError(w, statusForKind(kind), kind, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, report)
	})

	return r
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case model.KindGeocoding, model.KindNoZoneFound, model.KindInvalidCoordinate:
		return http.StatusUnprocessableEntity
	case model.KindZoneService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
