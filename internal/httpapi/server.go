package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jogardn/xconnect/internal/agent"
	"github.com/jogardn/xconnect/internal/circuitbreaker"
	"github.com/jogardn/xconnect/internal/ledger"
	"github.com/jogardn/xconnect/internal/reconcile"
	"github.com/jogardn/xconnect/pkg/models"
	"github.com/jogardn/xconnect/pkg/request"
	"github.com/sirupsen/logrus"
)

const serviceName = "xconnect-agent"

// Dispatcher is the part of agent.Dispatcher the API drives.
type Dispatcher interface {
	NewRequest(sourceLanguage string) (*request.Request, error)
	Send(ctx context.Context, req *request.Request) (*agent.SendResult, error)
	Poll(ctx context.Context) (*agent.PollResult, error)
}

type BreakerReporter interface {
	Snapshot() circuitbreaker.Snapshot
}

type Server struct {
	dispatcher Dispatcher
	store      ledger.Store
	breaker    BreakerReporter
	analyzer   *reconcile.Analyzer
	websocket  http.HandlerFunc
	logger     *logrus.Logger
}

type Option func(*Server)

// WithBreaker adds the transport breaker state to /health.
func WithBreaker(b BreakerReporter) Option { return func(s *Server) { s.breaker = b } }

// WithWebSocket serves live agent activity on /ws.
func WithWebSocket(h http.HandlerFunc) Option { return func(s *Server) { s.websocket = h } }

func NewServer(dispatcher Dispatcher, store ledger.Store, logger *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		dispatcher: dispatcher,
		store:      store,
		analyzer:   reconcile.NewAnalyzer(logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.HealthCheck).Methods("GET", "OPTIONS")
	router.HandleFunc("/orders", s.SendOrder).Methods("POST", "OPTIONS")
	router.HandleFunc("/orders", s.ListOrders).Methods("GET")
	router.HandleFunc("/orders/{name}", s.GetOrder).Methods("GET", "OPTIONS")
	router.HandleFunc("/deliveries", s.ListDeliveries).Methods("GET", "OPTIONS")
	router.HandleFunc("/reconcile", s.Reconcile).Methods("GET", "OPTIONS")
	router.HandleFunc("/poll", s.Poll).Methods("POST", "OPTIONS")
	if s.websocket != nil {
		router.HandleFunc("/ws", s.websocket)
	}

	router.Use(CORSMiddleware())
	router.Use(LoggingMiddleware(s.logger))
	return router
}

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":  "healthy",
		"service": serviceName,
	}
	if s.breaker != nil {
		health["transport"] = s.breaker.Snapshot()
	}

	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.WithError(err).Warn("Ledger health check failed")
		health["status"] = "unhealthy"
		health["error"] = "ledger connection failed"
		s.respondWithJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	s.respondWithJSON(w, http.StatusOK, health)
}

// FileUpload is one input file of an OrderRequest. Content is base64 in
// JSON.
type FileUpload struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	SourceLanguage  string       `json:"source_language"`
	TargetLanguages []string     `json:"target_languages"`
	Reference       string       `json:"reference"`
	Instructions    []string     `json:"instructions"`
	Files           []FileUpload `json:"files"`
}

// SendOrder builds an order from the JSON body and sends it to the provider.
func (s *Server) SendOrder(w http.ResponseWriter, r *http.Request) {
	var body OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.WithError(err).Error("Failed to decode order request")
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(body.TargetLanguages) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "At least one target language is required")
		return
	}

	req, err := s.dispatcher.NewRequest(body.SourceLanguage)
	if err != nil {
		var configErr *models.ConfigurationError
		if errors.As(err, &configErr) {
			s.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.WithError(err).Error("Failed to create order")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}
	for _, lang := range body.TargetLanguages {
		req.AddTargetLanguage(lang)
	}
	for _, instruction := range body.Instructions {
		req.AddInstruction(instruction)
	}
	if body.Reference != "" {
		req.SetReference(body.Reference)
	}
	for _, f := range body.Files {
		if f.Name == "" {
			s.respondWithError(w, http.StatusBadRequest, "Every file needs a name")
			return
		}
		req.AddContent(f.Name, f.Content)
	}

	result, err := s.dispatcher.Send(r.Context(), req)
	if err != nil && result != nil {
		// The provider already has the order.
		s.logger.WithError(err).WithField("order_name", result.OrderName).Warn("Order sent with warning")
		s.respondWithJSON(w, http.StatusCreated, result)
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("order_name", req.Order().Name()).Error("Failed to send order")
		s.respondWithError(w, http.StatusBadGateway, "Failed to send order")
		return
	}

	s.respondWithJSON(w, http.StatusCreated, result)
}

func (s *Server) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ListOrders(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list orders")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to list orders")
		return
	}
	s.respondWithJSON(w, http.StatusOK, orders)
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	order, err := s.store.GetOrder(r.Context(), name)
	if errors.Is(err, ledger.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("order_name", name).Error("Failed to get order")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get order")
		return
	}
	s.respondWithJSON(w, http.StatusOK, order)
}

func (s *Server) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := s.store.ListDeliveries(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list deliveries")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to list deliveries")
		return
	}
	s.respondWithJSON(w, http.StatusOK, deliveries)
}

// Reconcile reports delivered, pending and overdue orders. ?format=summary
// returns plain text.
func (s *Server) Reconcile(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ListOrders(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list orders")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to reconcile")
		return
	}
	deliveries, err := s.store.ListDeliveries(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list deliveries")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to reconcile")
		return
	}

	report := s.analyzer.Compare(orders, deliveries)
	if r.URL.Query().Get("format") == "summary" {
		summary, err := s.analyzer.GenerateReport(report, "summary")
		if err != nil {
			s.respondWithError(w, http.StatusInternalServerError, "Failed to reconcile")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(summary)
		return
	}
	s.respondWithJSON(w, http.StatusOK, report)
}

func (s *Server) Poll(w http.ResponseWriter, r *http.Request) {
	result, err := s.dispatcher.Poll(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Manual poll failed")
		s.respondWithError(w, http.StatusBadGateway, "Poll failed")
		return
	}
	s.respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}
