package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Reecepbcups/juno-vaults/native/vaults"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	writeRatePerSec = 5
	writeRateBurst  = 10
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaults_rpc_requests_total",
		Help: "JSON-RPC requests handled, by method and outcome.",
	}, []string{"method", "outcome"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaults_rpc_request_duration_seconds",
		Help:    "JSON-RPC request latency, by method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

type Server struct {
	engine *vaults.Engine
	store  *vaults.Store

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	authToken string
	nowFn     func() int64
}

// NewServer wires the exchange engine and its query store into a JSON-RPC
// surface. The write-method auth token is read from VAULTS_RPC_TOKEN.
func NewServer(engine *vaults.Engine, store *vaults.Store) *Server {
	token := strings.TrimSpace(os.Getenv("VAULTS_RPC_TOKEN"))
	return &Server{
		engine:    engine,
		store:     store,
		limiters:  make(map[string]*rate.Limiter),
		authToken: token,
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source used for deadline checks. Intended for
// tests.
func (s *Server) SetNowFunc(now func() int64) {
	if now == nil {
		s.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	s.nowFn = now
}

func (s *Server) Start(addr string) error {
	fmt.Printf("Starting JSON-RPC server on %s\n", addr)
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.Handle)
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// Handle is the main request handler that routes to method handlers. It is
// exported so tests can drive it through httptest without opening a socket.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	timer := prometheus.NewTimer(requestDuration.WithLabelValues(req.Method))
	defer timer.ObserveDuration()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.route(recorder, r, req)
	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
	}
	requestsTotal.WithLabelValues(req.Method, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "vaults_createListing":
		s.guardedWrite(w, r, req, s.handleCreateListing)
	case "vaults_addFunds":
		s.guardedWrite(w, r, req, s.handleAddFunds)
	case "vaults_changeAsk":
		s.guardedWrite(w, r, req, s.handleChangeAsk)
	case "vaults_setWhitelistedBuyer":
		s.guardedWrite(w, r, req, s.handleSetWhitelistedBuyer)
	case "vaults_removeListing":
		s.guardedWrite(w, r, req, s.handleRemoveListing)
	case "vaults_finalizeListing":
		s.guardedWrite(w, r, req, s.handleFinalizeListing)
	case "vaults_refundExpired":
		s.guardedWrite(w, r, req, s.handleRefundExpired)
	case "vaults_createBucket":
		s.guardedWrite(w, r, req, s.handleCreateBucket)
	case "vaults_addToBucket":
		s.guardedWrite(w, r, req, s.handleAddToBucket)
	case "vaults_removeBucket":
		s.guardedWrite(w, r, req, s.handleRemoveBucket)
	case "vaults_withdrawPurchased":
		s.guardedWrite(w, r, req, s.handleWithdrawPurchased)
	case "vaults_buyListing":
		s.guardedWrite(w, r, req, s.handleBuyListing)
	case "vaults_getListing":
		s.handleGetListing(w, r, req)
	case "vaults_getBucket":
		s.handleGetBucket(w, r, req)
	case "vaults_listListings":
		s.handleListListings(w, r, req)
	case "vaults_marketListings":
		s.handleMarketListings(w, r, req)
	case "vaults_listingsByOwner":
		s.handleListingsByOwner(w, r, req)
	case "vaults_whitelistedListings":
		s.handleWhitelistedListings(w, r, req)
	case "vaults_bucketsByOwner":
		s.handleBucketsByOwner(w, r, req)
	case "vaults_admin":
		s.handleAdmin(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method '%s' not found", req.Method), nil)
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) guardedWrite(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	if !s.allowSource(requestSource(r)) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(writeRatePerSec), writeRateBurst)
		s.limiters[source] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func requestSource(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
