package authorization

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/djkazic/plainchain/internal/types"
)

func sampleTransaction(addr types.Address) types.Transaction {
	return types.Transaction{
		Inputs:  []types.OutPoint{types.RegularOutPoint(types.Txid{1}, 0)},
		Outputs: []types.Output{{Address: addr, Content: types.ValueContent(1000)}},
	}
}

func TestAuthorize_VerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	addr := types.DeriveAddress(pub)
	tx := sampleTransaction(addr)

	at, err := Authorize([]KeyedAddress{{Address: addr, Private: priv}}, tx)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if err := VerifyTransaction(at); err != nil {
		t.Errorf("VerifyTransaction: %v", err)
	}
}

func TestAuthorize_WrongKeypair(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	wrongAddr := types.DeriveAddress(otherPub)
	tx := sampleTransaction(wrongAddr)

	_, err = Authorize([]KeyedAddress{{Address: wrongAddr, Private: priv}}, tx)
	if !errors.Is(err, ErrWrongKeypairForAddress) {
		t.Errorf("err = %v, want ErrWrongKeypairForAddress", err)
	}
}

func TestVerifyTransaction_TamperedSignatureFails(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	addr := types.DeriveAddress(pub)
	tx := sampleTransaction(addr)

	at, err := Authorize([]KeyedAddress{{Address: addr, Private: priv}}, tx)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	at.Authorizations[0].Signature[0] ^= 0xFF
	if err := VerifyTransaction(at); err != ErrInvalidSignature {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyBody_MultipleTransactions(t *testing.T) {
	var authorized []types.AuthorizedTransaction
	for i := 0; i < 5; i++ {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			t.Fatal(err)
		}
		addr := types.DeriveAddress(pub)
		tx := types.Transaction{
			Inputs:  []types.OutPoint{types.RegularOutPoint(types.Txid{byte(i)}, 0)},
			Outputs: []types.Output{{Address: addr, Content: types.ValueContent(uint64(1000 + i))}},
		}
		at, err := Authorize([]KeyedAddress{{Address: addr, Private: priv}}, tx)
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		authorized = append(authorized, at)
	}
	body := types.NewBody(authorized, nil)
	if err := VerifyBody(body); err != nil {
		t.Errorf("VerifyBody: %v", err)
	}
}

func TestVerifyBody_OneBadSignatureFailsWhole(t *testing.T) {
	var authorized []types.AuthorizedTransaction
	for i := 0; i < 3; i++ {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			t.Fatal(err)
		}
		addr := types.DeriveAddress(pub)
		tx := types.Transaction{
			Inputs:  []types.OutPoint{types.RegularOutPoint(types.Txid{byte(i)}, 0)},
			Outputs: []types.Output{{Address: addr, Content: types.ValueContent(uint64(1000 + i))}},
		}
		at, err := Authorize([]KeyedAddress{{Address: addr, Private: priv}}, tx)
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		authorized = append(authorized, at)
	}
	authorized[1].Authorizations[0].Signature[0] ^= 0xFF
	body := types.NewBody(authorized, nil)
	if err := VerifyBody(body); err != ErrInvalidSignature {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
}
