package wire

import (
	"testing"

	"github.com/djkazic/plainchain/internal/types"
	"github.com/djkazic/plainchain/testutil"
)

func TestRequest_EncodeDecodeRoundTrip(t *testing.T) {
	req := GetBlock(42)
	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	got, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.Kind != RequestGetBlock || got.Height != 42 {
		t.Errorf("got %+v, want GetBlock(42)", got)
	}
}

func TestRequest_PushTransactionRoundTrip(t *testing.T) {
	addr, _, _ := testutil.Keypair()
	tx := testutil.SampleTransaction([]types.OutPoint{types.RegularOutPoint(types.Txid{1}, 0)}, []types.Output{testutil.SampleOutput(addr, 500)})
	req := PushTransaction(types.AuthorizedTransaction{Transaction: tx})
	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	got, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.Kind != RequestPushTransaction {
		t.Errorf("kind = %v, want RequestPushTransaction", got.Kind)
	}
	if got.Transaction.Transaction.Txid() != tx.Txid() {
		t.Errorf("txid mismatch after round trip")
	}
}

func TestResponse_EncodeDecodeRoundTrip(t *testing.T) {
	addr, _, _ := testutil.Keypair()
	body := testutil.GenesisBody(addr, 1000)
	header := testutil.SampleHeader(body, types.BlockHash{}, types.MainBlockHash{})
	resp := Block(header, body)

	data, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	got, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if got.Kind != ResponseBlock || got.Header.Hash() != header.Hash() {
		t.Errorf("got %+v, want matching Block response", got)
	}
}

func TestDecodeRequest_OversizeRejected(t *testing.T) {
	oversized := make([]byte, ReadLimit+1)
	if _, err := DecodeRequest(oversized); err == nil {
		t.Error("expected error decoding oversized request")
	}
}

func TestPeerState_EncodeDecodeRoundTrip(t *testing.T) {
	state := PeerState{BlockHeight: 7}
	data, err := EncodePeerState(state)
	if err != nil {
		t.Fatalf("EncodePeerState: %v", err)
	}
	got, err := DecodePeerState(data)
	if err != nil {
		t.Fatalf("DecodePeerState: %v", err)
	}
	if got != state {
		t.Errorf("got %+v, want %+v", got, state)
	}
}
