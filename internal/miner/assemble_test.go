package miner

import (
	"testing"

	"github.com/djkazic/plainchain/internal/types"
)

func TestAssembleBlock_ZeroFeeOmitsCoinbase(t *testing.T) {
	header, body := AssembleBlock(nil, 0, types.Address{}, types.BlockHash{}, types.MainBlockHash{})
	if len(body.Coinbase) != 0 {
		t.Errorf("len(Coinbase) = %d, want 0 for zero fee", len(body.Coinbase))
	}
	if header.MerkleRoot != body.MerkleRoot() {
		t.Error("header merkle root does not match assembled body")
	}
}

func TestAssembleBlock_NonzeroFeePaysCoinbase(t *testing.T) {
	addr := types.Address{1, 2, 3}
	header, body := AssembleBlock(nil, 500, addr, types.BlockHash{}, types.MainBlockHash{})
	if len(body.Coinbase) != 1 {
		t.Fatalf("len(Coinbase) = %d, want 1", len(body.Coinbase))
	}
	if body.Coinbase[0].Address != addr || body.Coinbase[0].GetValue() != 500 {
		t.Errorf("coinbase output = %+v, want address %v value 500", body.Coinbase[0], addr)
	}
	if header.MerkleRoot != body.MerkleRoot() {
		t.Error("header merkle root does not match assembled body")
	}
}

func TestBMMBribe(t *testing.T) {
	if got := BMMBribe(0); got != EmptyBlockBMMBribe {
		t.Errorf("BMMBribe(0) = %d, want %d", got, EmptyBlockBMMBribe)
	}
	if got := BMMBribe(750); got != 750 {
		t.Errorf("BMMBribe(750) = %d, want 750", got)
	}
}
