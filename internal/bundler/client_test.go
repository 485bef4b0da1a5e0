package bundler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcResultServer(t *testing.T, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestSupportedEntryPointsHappyPath(t *testing.T) {
	srv := rpcResultServer(t, []string{"0x0000000071727De22E5E9d8BAf0edAc6f37da032"})
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	entryPoints, err := c.SupportedEntryPoints(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entryPoints) != 1 {
		t.Fatalf("expected 1 entry point, got %d", len(entryPoints))
	}
}

func TestSendUserOperationRetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": "0xhash"}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	start := time.Now()
	hash, err := c.SendUserOperation(context.Background(), PackedUserOperation{Sender: "0xabc"}, "0xEntryPoint")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if hash != "0xhash" {
		t.Fatalf("unexpected hash %q", hash)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if time.Since(start) < baseDelay {
		t.Fatalf("expected at least one backoff delay to have elapsed")
	}
}

func TestSendUserOperationNonRateLimitErrorPropagatesImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err = c.SendUserOperation(context.Background(), PackedUserOperation{}, "0xEntryPoint")
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-429 error, got %d", calls)
	}
}
