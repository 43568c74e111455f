package peg

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/djkazic/plainchain/internal/types"
)

// mockRPC returns an httptest.Server that dispatches JSON-RPC method names
// to canned results via the handlers map.
func mockRPC(t *testing.T, handlers map[string]func(params []interface{}) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		handler, ok := handlers[req.Method]
		if !ok {
			t.Fatalf("unexpected RPC method %q", req.Method)
		}
		result, rpcErr := handler(req.Params)
		resp := rpcResponse{JSONRPC: "1.0", ID: req.ID, Error: rpcErr}
		if rpcErr == nil {
			raw, err := json.Marshal(result)
			if err != nil {
				t.Fatalf("marshal result: %v", err)
			}
			resp.Result = raw
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
}

func TestGetMainchainTip(t *testing.T) {
	want := "00000000000000000001abc0000000000000000000000000000000000000dead"
	srv := mockRPC(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"getbestblockhash": func(params []interface{}) (interface{}, *rpcError) { return want, nil },
	})
	defer srv.Close()

	client := NewClient(srv.URL, "user", "pass", 5)
	hash, err := client.GetMainchainTip(t.Context())
	if err != nil {
		t.Fatalf("GetMainchainTip: %v", err)
	}
	if mainBlockHashHex(hash) != want {
		t.Errorf("got %s, want %s", mainBlockHashHex(hash), want)
	}
}

func TestCall_PropagatesRPCError(t *testing.T) {
	srv := mockRPC(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"getbestblockhash": func(params []interface{}) (interface{}, *rpcError) {
			return nil, &rpcError{Code: -1, Message: "boom"}
		},
	})
	defer srv.Close()

	client := NewClient(srv.URL, "user", "pass", 5)
	_, err := client.GetMainchainTip(t.Context())
	if err == nil {
		t.Fatal("expected error from RPC")
	}
}

func TestVerifyBMM_NoSuccessorBlockFails(t *testing.T) {
	srv := mockRPC(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"getblock": func(params []interface{}) (interface{}, *rpcError) {
			return blockInfo{NextBlockHash: ""}, nil
		},
	})
	defer srv.Close()

	client := NewClient(srv.URL, "user", "pass", 5)
	err := client.VerifyBMM(t.Context(), types.Header{})
	if !errors.Is(err, ErrNoNextBlock) {
		t.Errorf("err = %v, want ErrNoNextBlock", err)
	}
}

func TestVerifyBMM_Confirmed(t *testing.T) {
	srv := mockRPC(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"getblock":   func(params []interface{}) (interface{}, *rpcError) { return blockInfo{NextBlockHash: "ab"}, nil },
		"verifybmm":  func(params []interface{}) (interface{}, *rpcError) { return true, nil },
	})
	defer srv.Close()

	client := NewClient(srv.URL, "user", "pass", 5)
	if err := client.VerifyBMM(t.Context(), types.Header{}); err != nil {
		t.Errorf("VerifyBMM: %v", err)
	}
}

func TestAttemptBMM_EmptyTxidRejected(t *testing.T) {
	srv := mockRPC(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"createbmmcriticaldatatx": func(params []interface{}) (interface{}, *rpcError) {
			return map[string]interface{}{"txid": map[string]string{"txid": ""}}, nil
		},
	})
	defer srv.Close()

	client := NewClient(srv.URL, "user", "pass", 5)
	err := client.AttemptBMM(t.Context(), 1000, 100, types.Header{})
	if err == nil {
		t.Error("expected error on empty txid response")
	}
}

func TestAttemptBMM_Success(t *testing.T) {
	srv := mockRPC(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"createbmmcriticaldatatx": func(params []interface{}) (interface{}, *rpcError) {
			return map[string]interface{}{"txid": map[string]string{"txid": "deadbeef"}}, nil
		},
	})
	defer srv.Close()

	client := NewClient(srv.URL, "user", "pass", 5)
	if err := client.AttemptBMM(t.Context(), 1000, 100, types.Header{}); err != nil {
		t.Errorf("AttemptBMM: %v", err)
	}
}

func TestGetTwoWayPegData_EmptyDeposits(t *testing.T) {
	srv := mockRPC(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"listsidechaindepositsbyblock": func(params []interface{}) (interface{}, *rpcError) { return []sidechainDeposit{}, nil },
		"listspentwithdrawals":         func(params []interface{}) (interface{}, *rpcError) { return []interface{}{}, nil },
		"listfailedwithdrawals":        func(params []interface{}) (interface{}, *rpcError) { return []interface{}{}, nil },
	})
	defer srv.Close()

	client := NewClient(srv.URL, "user", "pass", 5)
	end := types.MainBlockHash{}
	data, err := client.GetTwoWayPegData(t.Context(), end, nil)
	if err != nil {
		t.Fatalf("GetTwoWayPegData: %v", err)
	}
	if len(data.Deposits) != 0 {
		t.Errorf("len(Deposits) = %d, want 0", len(data.Deposits))
	}
	if len(data.BundleStatuses) != 0 {
		t.Errorf("len(BundleStatuses) = %d, want 0", len(data.BundleStatuses))
	}
}

func TestGenerate(t *testing.T) {
	called := false
	srv := mockRPC(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"generate": func(params []interface{}) (interface{}, *rpcError) {
			called = true
			return []string{"hash1"}, nil
		},
	})
	defer srv.Close()

	client := NewClient(srv.URL, "user", "pass", 5)
	if err := client.Generate(t.Context(), 1); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !called {
		t.Error("generate RPC was not called")
	}
}
