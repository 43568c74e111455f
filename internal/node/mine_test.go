package node

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/djkazic/plainchain/internal/types"
	"github.com/djkazic/plainchain/testutil"
)

// miningPegServer answers the mainchain RPC calls the mining driver makes,
// beyond what emptyPegServer covers for SubmitBlock: tip lookups and the
// BMM critical-data/verify handshake. nextBlockHash controls whether
// VerifyBMM reports a confirmation.
func miningPegServer(t *testing.T, nextBlockHash string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     interface{} `json:"id"`
			Method string      `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		var result interface{}
		switch req.Method {
		case "listsidechaindepositsbyblock":
			result = []interface{}{}
		case "listspentwithdrawals", "listfailedwithdrawals":
			result = []interface{}{}
		case "receivewithdrawalbundle":
			result = true
		case "getbestblockhash":
			result = "00000000000000000001abc0000000000000000000000000000000000000dead"
		case "createbmmcriticaldatatx":
			result = map[string]interface{}{"txid": map[string]string{"txid": "deadbeef"}}
		case "getblock":
			result = map[string]interface{}{"nextblockhash": nextBlockHash}
		case "verifybmm":
			result = true
		default:
			t.Fatalf("unexpected RPC method %q", req.Method)
		}
		raw, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("marshal result: %v", err)
		}
		resp := struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      interface{}     `json:"id"`
			Result  json.RawMessage `json:"result"`
		}{JSONRPC: "1.0", ID: req.ID, Result: raw}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
}

func openMiningTestNode(t *testing.T, nextBlockHash string) *Node {
	t.Helper()
	pegSrv := miningPegServer(t, nextBlockHash)
	t.Cleanup(pegSrv.Close)

	cfg := Config{
		DataDir:         filepath.Join(t.TempDir(), "test.db"),
		BindAddr:        "127.0.0.1:0",
		MainchainURL:    pegSrv.URL,
		MainchainUser:   "user",
		MainchainPass:   "pass",
		SidechainNumber: 5,
	}
	n, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func TestMineOnce_AttemptsThenWaitsForConfirmation(t *testing.T) {
	n := openMiningTestNode(t, "") // no successor block yet: stays unconfirmed
	ctx := t.Context()
	coinbase, _, _ := testutil.Keypair()

	hasPending, err := n.MineOnce(ctx, coinbase, false)
	if err != nil {
		t.Fatalf("MineOnce (attempt): %v", err)
	}
	if !hasPending {
		t.Fatal("expected a pending attempt after assembling an empty block")
	}

	hasPending, err = n.MineOnce(ctx, coinbase, true)
	if err != nil {
		t.Fatalf("MineOnce (poll): %v", err)
	}
	if !hasPending {
		t.Error("expected attempt to remain pending without a successor mainchain block")
	}

	height, err := n.GetHeight()
	if err != nil {
		t.Fatalf("GetHeight: %v", err)
	}
	if height != 0 {
		t.Errorf("height = %d, want 0 before confirmation", height)
	}
}

func TestMineOnce_ConfirmedSubmitsBlock(t *testing.T) {
	n := openMiningTestNode(t, "ab") // successor block present: confirms immediately
	ctx := t.Context()
	coinbase, _, _ := testutil.Keypair()

	hasPending, err := n.MineOnce(ctx, coinbase, false)
	if err != nil {
		t.Fatalf("MineOnce (attempt): %v", err)
	}
	if !hasPending {
		t.Fatal("expected a pending attempt after assembling a block")
	}

	hasPending, err = n.MineOnce(ctx, coinbase, true)
	if err != nil {
		t.Fatalf("MineOnce (confirm): %v", err)
	}
	if hasPending {
		t.Error("expected the attempt to clear once confirmed")
	}

	height, err := n.GetHeight()
	if err != nil {
		t.Fatalf("GetHeight: %v", err)
	}
	if height != 1 {
		t.Errorf("height = %d, want 1 after the mined block is submitted", height)
	}
}
