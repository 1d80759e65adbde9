package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"credora/core"
	"credora/crypto"
	"credora/native/issuer"
	"credora/native/pool"
	"credora/storage"
)

func newTestServer(t *testing.T) (*Server, *core.Node) {
	t.Helper()
	t.Setenv("CREDORA_RPC_TOKEN", "test-token")

	node, err := core.NewNode(storage.NewMemDB(), pool.NewDevYieldSource(), issuer.StaticVerifier{Valid: true}, core.NodeConfig{
		Owner: crypto.ModuleAddress("owner"),
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return NewServer(node, nil, true), node
}

func postRPC(t *testing.T, handler http.Handler, token string, body string) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp RPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestHandleRejectsMalformedRequests(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	rec, resp := postRPC(t, router, "", "")
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("empty body: code=%d err=%+v", rec.Code, resp.Error)
	}

	rec, resp = postRPC(t, router, "", "{not json")
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("bad json: code=%d err=%+v", rec.Code, resp.Error)
	}

	rec, resp = postRPC(t, router, "", `{"jsonrpc":"1.0","method":"pool_getStatus","id":1}`)
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("bad version: code=%d err=%+v", rec.Code, resp.Error)
	}

	rec, resp = postRPC(t, router, "", `{"jsonrpc":"2.0","method":"no_suchMethod","id":1}`)
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unknown method: code=%d err=%+v", rec.Code, resp.Error)
	}
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	server, node := newTestServer(t)
	router := server.Router()

	depositor := crypto.ModuleAddress("test-depositor")
	if err := node.FundAccount(depositor, mustBig("10000000000000000000")); err != nil {
		t.Fatalf("fund: %v", err)
	}

	body := fmt.Sprintf(`{"jsonrpc":"2.0","method":"pool_deposit","params":[{"depositor":%q,"amount":"1000000000000000000"}],"id":1}`, depositor.String())

	rec, resp := postRPC(t, router, "", body)
	if rec.Code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("missing token: code=%d err=%+v", rec.Code, resp.Error)
	}

	rec, resp = postRPC(t, router, "wrong-token", body)
	if rec.Code != http.StatusUnauthorized || resp.Error == nil {
		t.Fatalf("wrong token: code=%d err=%+v", rec.Code, resp.Error)
	}

	rec, resp = postRPC(t, router, "test-token", body)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("authed deposit: code=%d err=%+v", rec.Code, resp.Error)
	}
}

func TestReadMethodsNeedNoAuth(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	rec, resp := postRPC(t, router, "", `{"jsonrpc":"2.0","method":"pool_getStatus","id":7}`)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("status: code=%d err=%+v", rec.Code, resp.Error)
	}

	result, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var status struct {
		SharePrice string `json:"sharePrice"`
	}
	if err := json.Unmarshal(result, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	// Empty pool sits at the 1e18 price floor.
	if status.SharePrice != "1000000000000000000" {
		t.Fatalf("share price = %s, want 1e18", status.SharePrice)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz code = %d", rec.Code)
	}
	if rec.Body.String() != `{"status":"ok"}` {
		t.Fatalf("healthz body = %s", rec.Body.String())
	}
}

func mustBig(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer literal")
	}
	return v
}
