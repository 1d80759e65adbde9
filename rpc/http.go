package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credora/core"
	"credora/observability"
	"credora/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server serves the protocol JSON-RPC API over HTTP.
type Server struct {
	node      *core.Node
	authToken string
	metrics   *observability.ModuleMetrics

	pool   *modules.PoolModule
	issuer *modules.IssuerModule
	notes  *modules.NotesModule
	vault  *modules.VaultModule
	bank   *modules.BankModule
}

// NewServer wires the RPC modules around a node. The mutation auth token is
// read from CREDORA_RPC_TOKEN; when unset, mutating methods are rejected.
func NewServer(node *core.Node, metrics *observability.ModuleMetrics, devMode bool) *Server {
	token := strings.TrimSpace(os.Getenv("CREDORA_RPC_TOKEN"))
	return &Server{
		node:      node,
		authToken: token,
		metrics:   metrics,
		pool:      modules.NewPoolModule(node),
		issuer:    modules.NewIssuerModule(node),
		notes:     modules.NewNotesModule(node),
		vault:     modules.NewVaultModule(node),
		bank:      modules.NewBankModule(node, devMode),
	}
}

// Router assembles the HTTP routes, including health and metrics endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start blocks serving the JSON-RPC API until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting JSON-RPC server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
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

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
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

	route, ok := s.route(req.Method)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
		return
	}
	if route.mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			s.observeError(route, codeUnauthorized)
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	start := time.Now()
	result, modErr := route.call(firstParam(req.Params))
	s.observe(route, start)
	if modErr != nil {
		s.observeError(route, modErr.Code)
		writeError(w, modErr.HTTPStatus, req.ID, modErr.Code, modErr.Message, modErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

type rpcRoute struct {
	module   string
	method   string
	mutating bool
	call     func(json.RawMessage) (interface{}, *modules.ModuleError)
}

func (s *Server) route(method string) (rpcRoute, bool) {
	wrap := func(module string, mutating bool, fn func(json.RawMessage) (interface{}, *modules.ModuleError)) rpcRoute {
		return rpcRoute{module: module, method: method, mutating: mutating, call: fn}
	}
	switch method {
	case "pool_deposit":
		return wrap("pool", true, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.pool.Deposit(raw)
		}), true
	case "pool_getSharesBalance":
		return wrap("pool", false, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.pool.SharesBalance(raw)
		}), true
	case "pool_getStatus":
		return wrap("pool", false, func(json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.pool.Status()
		}), true
	case "pool_previewShares":
		return wrap("pool", false, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.pool.PreviewShares(raw)
		}), true
	case "issuer_createNote":
		return wrap("issuer", true, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.issuer.CreateNote(raw)
		}), true
	case "issuer_repay":
		return wrap("issuer", true, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.issuer.Repay(raw)
		}), true
	case "issuer_getNote":
		return wrap("issuer", false, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.issuer.GetNote(raw)
		}), true
	case "issuer_requiredAdvance":
		return wrap("issuer", false, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.issuer.RequiredAdvance(raw)
		}), true
	case "note_get":
		return wrap("note", false, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.notes.Get(raw)
		}), true
	case "note_tokenURI":
		return wrap("note", false, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.notes.TokenURI(raw)
		}), true
	case "note_deposit":
		return wrap("note", true, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.notes.Deposit(raw)
		}), true
	case "vault_isAuthorized":
		return wrap("vault", false, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.vault.IsAuthorized(raw)
		}), true
	case "vault_approveIssuer":
		return wrap("vault", true, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.vault.ApproveIssuer(raw)
		}), true
	case "bank_getAccount":
		return wrap("bank", false, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.bank.GetAccount(raw)
		}), true
	case "dev_fundAccount":
		return wrap("bank", true, func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.bank.Fund(raw)
		}), true
	}
	return rpcRoute{}, false
}

func firstParam(params []json.RawMessage) json.RawMessage {
	if len(params) == 0 {
		return json.RawMessage("{}")
	}
	return params[0]
}

func (s *Server) observe(route rpcRoute, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(route.module, route.method, time.Since(start))
}

func (s *Server) observeError(route rpcRoute, code int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveError(route.module, route.method, fmt.Sprintf("%d", code))
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
