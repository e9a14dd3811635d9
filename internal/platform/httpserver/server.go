package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	ordersservice "courier/contexts/notifications/orders-service"
	ordershttp "courier/contexts/notifications/orders-service/transport/http"
	_ "courier/internal/platform/httpserver/docs"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	logModule     = "internal/platform/httpserver"
	creatorHeader = "X-Creator"
	maxBodyBytes  = 1 << 20
)

type Server struct {
	mux     *http.ServeMux
	handler http.Handler
	http    *http.Server
	logger  *slog.Logger
	addr    string
	orders  ordersservice.Module
}

func New(orders ordersservice.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		orders: orders,
	}
	s.registerRoutes()
	s.handler = otelhttp.NewHandler(metricsMiddleware(s.mux), "courier.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", logModule,
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/orders/chain", s.handleCreateOrderChain)
	s.mux.HandleFunc("POST /v1/orders/{order_id}/cancel", s.handleCancelOrder)
	s.mux.HandleFunc("GET /v1/shipments/{shipment_id}", s.handleGetShipment)
	s.mux.HandleFunc("GET /v1/status-feed", s.handleReadStatusFeed)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateOrderChain(w http.ResponseWriter, r *http.Request) {
	creator, ok := requireCreator(w, r)
	if !ok {
		return
	}

	var req ordershttp.CreateOrderChainRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.orders.Handler.CreateOrderChainHandler(r.Context(), creator, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	creator, ok := requireCreator(w, r)
	if !ok {
		return
	}
	resp, err := s.orders.Handler.CancelOrderHandler(r.Context(), creator, r.PathValue("order_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	creator, ok := requireCreator(w, r)
	if !ok {
		return
	}
	resp, err := s.orders.Handler.GetShipmentHandler(r.Context(), creator, r.PathValue("shipment_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReadStatusFeed(w http.ResponseWriter, r *http.Request) {
	creator, ok := requireCreator(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	var seq int64
	if raw := query.Get("seq"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_sequence", "seq must be an integer")
			return
		}
		seq = parsed
	}
	var limit int
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.orders.Handler.ReadStatusFeedHandler(r.Context(), creator, seq, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireCreator(w http.ResponseWriter, r *http.Request) (string, bool) {
	creator := strings.TrimSpace(r.Header.Get(creatorHeader))
	if creator == "" {
		writeError(w, http.StatusUnauthorized, "missing_creator", creatorHeader+" header is required")
		return "", false
	}
	return creator, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
