// Package httpapi exposes the dispatcher and wallet lookup over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liquichain/contract_layer/internal/abi"
	"github.com/liquichain/contract_layer/internal/chain"
	"github.com/liquichain/contract_layer/internal/events"
	"github.com/liquichain/contract_layer/internal/handler"
	"github.com/liquichain/contract_layer/internal/metrics"
	"github.com/liquichain/contract_layer/internal/wallet"
	"github.com/liquichain/contract_layer/internal/worker"
	"github.com/liquichain/contract_layer/pkg/logger"
)

var (
	errRateLimited      = errors.New("rate limit exceeded")
	errNoTransaction    = errors.New("one of rawTransaction or transaction is required")
	errBothTransactions = errors.New("rawTransaction and transaction are mutually exclusive")
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
	maxBodyBytes      = 1 << 20
)

// Dispatcher is the dispatch surface the API needs.
type Dispatcher interface {
	Execute(ctx context.Context, in handler.Input) (*handler.Result, error)
	Functions() []abi.ContractFunction
}

// Wallets registers wallets and answers wallet-by-contact queries.
type Wallets interface {
	Register(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error)
	FindByContactHashes(ctx context.Context, hashes []string) ([]wallet.Match, error)
}

// PoolStats reports worker pool usage for /health.
type PoolStats interface {
	Stats() worker.Stats
}

// Config wires a Server. Dispatcher and Wallets are required.
type Config struct {
	Dispatcher Dispatcher
	Wallets    Wallets
	// Workers, when set, adds pool usage to /health.
	Workers PoolStats
	Events  events.Recorder
	Metrics metrics.Recorder
	// Gatherer backs GET /metrics; the endpoint is omitted when nil.
	Gatherer prometheus.Gatherer
	Logger   *logger.Logger

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int

	// DecodeRawTransaction defaults to chain.DecodeRawTransaction.
	DecodeRawTransaction func(raw string) (handler.RawTransaction, error)
}

// Server holds the HTTP handlers.
type Server struct {
	dispatcher Dispatcher
	wallets    Wallets
	workers    PoolStats
	events     events.Recorder
	metrics    metrics.Recorder
	gatherer   prometheus.Gatherer
	log        *logger.Logger
	limiter    *rateLimiter
	decodeRaw  func(string) (handler.RawTransaction, error)
	router     *mux.Router
}

// NewServer builds the router and middleware chain.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("httpapi: dispatcher is required")
	}
	if cfg.Wallets == nil {
		return nil, fmt.Errorf("httpapi: wallet finder is required")
	}

	s := &Server{
		dispatcher: cfg.Dispatcher,
		wallets:    cfg.Wallets,
		workers:    cfg.Workers,
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		gatherer:   cfg.Gatherer,
		log:        cfg.Logger,
		decodeRaw:  cfg.DecodeRawTransaction,
	}
	if s.events == nil {
		s.events = events.NoOp{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NoOp{}
	}
	if s.log == nil {
		s.log = logger.NewDefault("httpapi")
	}
	if s.decodeRaw == nil {
		s.decodeRaw = chain.DecodeRawTransaction
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(s.log))
	r.Use(metricsMiddleware(s.metrics))

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/v1").Subrouter()
	if s.limiter != nil {
		api.Use(s.limiter.Middleware)
	}
	api.HandleFunc("/dispatch", s.dispatch).Methods(http.MethodPost)
	api.HandleFunc("/wallets", s.registerWallet).Methods(http.MethodPost)
	api.HandleFunc("/wallets/by-contact", s.walletsByContact).Methods(http.MethodPost)
	api.HandleFunc("/abi", s.listFunctions).Methods(http.MethodGet)
	api.HandleFunc("/events", s.recentEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/stream", s.streamEvents).Methods(http.MethodGet)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// StartCleanup periodically drops idle rate-limit state until ctx ends.
func (s *Server) StartCleanup(ctx context.Context, interval time.Duration) {
	if s.limiter == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.Cleanup(interval)
			}
		}
	}()
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.workers != nil {
		body["workers"] = s.workers.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

type dispatchRequest struct {
	RequestID      string                  `json:"requestId"`
	RawTransaction string                  `json:"rawTransaction"`
	Transaction    *handler.RawTransaction `json:"transaction"`
	Params         map[string]any          `json:"params"`
}

type dispatchResponse struct {
	Matched bool            `json:"matched"`
	Result  *handler.Result `json:"result"`
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	in := handler.Input{RequestID: req.RequestID, Params: req.Params}
	switch {
	case req.RawTransaction != "" && req.Transaction != nil:
		writeError(w, http.StatusBadRequest, errBothTransactions)
		return
	case req.RawTransaction != "":
		tx, err := s.decodeRaw(req.RawTransaction)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		in.Transaction = tx
	case req.Transaction != nil:
		in.Transaction = *req.Transaction
	default:
		writeError(w, http.StatusBadRequest, errNoTransaction)
		return
	}
	if in.RequestID == "" {
		in.RequestID = events.TraceIDFrom(r.Context())
	}

	ctx := events.WithRequestID(r.Context(), in.RequestID)
	res, err := s.dispatcher.Execute(ctx, in)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Matched: res != nil, Result: res})
}

func writeDispatchError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	status := http.StatusInternalServerError

	var (
		re *handler.ResolutionError
		ie *handler.InstantiationError
		ee *handler.ExecutionError
	)
	switch {
	case errors.As(err, &re):
		status = http.StatusNotFound
		body["kind"] = "resolution"
		body["handler"] = re.Handler
	case errors.As(err, &ie):
		status = http.StatusUnprocessableEntity
		body["kind"] = "instantiation"
		body["handler"] = ie.Handler
	case errors.As(err, &ee):
		body["kind"] = "execution"
		body["handler"] = ee.Handler
	}
	writeJSON(w, status, body)
}

type walletRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	PhoneNumberID string `json:"phoneNumberId"`
}

func (s *Server) registerWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	saved, err := s.wallets.Register(r.Context(), wallet.Wallet{
		ID:            req.ID,
		Name:          req.Name,
		Address:       req.Address,
		PhoneNumberID: req.PhoneNumberID,
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidWallet) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.log.WithError(err).Error("wallet registration failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

type contactRequest struct {
	ContactHashes []string `json:"contactHashes"`
}

func (s *Server) walletsByContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	matches, err := s.wallets.FindByContactHashes(r.Context(), req.ContactHashes)
	if err != nil {
		s.log.WithError(err).Error("wallet lookup failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": matches})
}

type functionView struct {
	abi.ContractFunction
	Signature string `json:"signature,omitempty"`
	Selector  string `json:"selector,omitempty"`
}

func (s *Server) listFunctions(w http.ResponseWriter, _ *http.Request) {
	fns := s.dispatcher.Functions()
	out := make([]functionView, 0, len(fns))
	for _, fn := range fns {
		v := functionView{ContractFunction: fn}
		if fn.IsFunction() {
			v.Signature = fn.Signature()
			v.Selector = fn.Selector()
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"functions": out})
}

func (s *Server) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		if n > maxEventLimit {
			n = maxEventLimit
		}
		limit = n
	}

	var list []events.Event
	switch q := r.URL.Query(); {
	case q.Get("handler") != "":
		list = s.events.RecentByHandler(q.Get("handler"), limit)
	case q.Get("type") != "":
		list = s.events.RecentByType(events.EventType(q.Get("type")), limit)
	default:
		list = s.events.Recent(limit)
	}
	if list == nil {
		list = []events.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(err.Error())})
}
