package state

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/types"
	"github.com/djkazic/plainchain/testutil"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func openTestState(t *testing.T) (*State, *bolt.DB) {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, nil)
	if err != nil {
		t.Fatalf("bolt.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := New(db, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, db
}

func TestConnectBody_CoinbaseAndSpend(t *testing.T) {
	s, db := openTestState(t)
	coinbaseAddr, _, _ := testutil.Keypair()
	genesis := testutil.GenesisBody(coinbaseAddr, 1000)

	err := db.Update(func(tx *bolt.Tx) error { return s.ConnectBody(tx, genesis) })
	if err != nil {
		t.Fatalf("ConnectBody genesis: %v", err)
	}

	var utxos map[types.OutPoint]types.Output
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		utxos, err = s.GetUtxos(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(utxos) != 1 {
		t.Fatalf("len(utxos) = %d, want 1", len(utxos))
	}
}

func TestValidateBody_InsufficientFee(t *testing.T) {
	s, db := openTestState(t)
	spenderAddr, _, spenderPriv := testutil.Keypair()
	recipientAddr, _, _ := testutil.Keypair()
	coinbaseAddr, _, _ := testutil.Keypair()
	genesis := testutil.GenesisBody(spenderAddr, 1000)

	if err := db.Update(func(tx *bolt.Tx) error { return s.ConnectBody(tx, genesis) }); err != nil {
		t.Fatalf("ConnectBody genesis: %v", err)
	}
	genesisOutpoint := types.CoinbaseOutPoint(genesis.MerkleRoot(), 0)

	txn := testutil.SampleTransaction(
		[]types.OutPoint{genesisOutpoint},
		[]types.Output{testutil.SampleOutput(recipientAddr, 1000)},
	)
	at, err := testutil.SignTransaction(txn, []ed25519.PrivateKey{spenderPriv}, []types.Address{spenderAddr})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	body := testutil.SampleBody([]types.AuthorizedTransaction{at}, []types.Output{testutil.SampleOutput(coinbaseAddr, 1)})

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := s.ValidateBody(tx, body)
		return err
	})
	if err != ErrNotEnoughFees {
		t.Errorf("err = %v, want ErrNotEnoughFees", err)
	}
}

func TestValidateBody_WrongKeyRejected(t *testing.T) {
	s, db := openTestState(t)
	spenderAddr, _, _ := testutil.Keypair()
	_, wrongPub, wrongPriv := testutil.Keypair()
	recipientAddr, _, _ := testutil.Keypair()
	genesis := testutil.GenesisBody(spenderAddr, 1000)

	if err := db.Update(func(tx *bolt.Tx) error { return s.ConnectBody(tx, genesis) }); err != nil {
		t.Fatalf("ConnectBody genesis: %v", err)
	}
	genesisOutpoint := types.CoinbaseOutPoint(genesis.MerkleRoot(), 0)

	txn := testutil.SampleTransaction(
		[]types.OutPoint{genesisOutpoint},
		[]types.Output{testutil.SampleOutput(recipientAddr, 900)},
	)
	message, err := types.MarshalCanonical(txn)
	if err != nil {
		t.Fatal(err)
	}
	at := types.AuthorizedTransaction{
		Transaction: txn,
		Authorizations: []types.Authorization{{
			PublicKey: wrongPub,
			Signature: ed25519.Sign(wrongPriv, message),
		}},
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := s.ValidateBody(tx, types.NewBody([]types.AuthorizedTransaction{at}, nil))
		return err
	})
	if err != ErrWrongPubKeyForAddress {
		t.Errorf("err = %v, want ErrWrongPubKeyForAddress", err)
	}
}

func TestFillTransaction_NoUtxo(t *testing.T) {
	s, db := openTestState(t)
	err := db.View(func(tx *bolt.Tx) error {
		_, err := s.FillTransaction(tx, types.Transaction{Inputs: []types.OutPoint{types.RegularOutPoint(types.Txid{9}, 0)}})
		return err
	})
	if _, ok := err.(*NoUtxoError); !ok {
		t.Errorf("err = %v, want *NoUtxoError", err)
	}
}

func TestConnectTwoWayPegData_DepositWithUnparseableAddressDropped(t *testing.T) {
	s, db := openTestState(t)
	pegData := types.TwoWayPegData{
		Deposits: map[types.OutPoint]types.Deposit{
			types.DepositOutPoint(types.MainTxid{1}, 0): {Address: "not a valid address", Value: 5000},
		},
	}
	err := db.Update(func(tx *bolt.Tx) error { return s.ConnectTwoWayPegData(tx, pegData, 0) })
	if err != nil {
		t.Fatalf("ConnectTwoWayPegData: %v", err)
	}
	var utxos map[types.OutPoint]types.Output
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		utxos, err = s.GetUtxos(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(utxos) != 0 {
		t.Errorf("len(utxos) = %d, want 0 (unparseable deposit should be dropped)", len(utxos))
	}
}

func TestConnectTwoWayPegData_ValidDeposit(t *testing.T) {
	s, db := openTestState(t)
	addr, _, _ := testutil.Keypair()
	outpoint := types.DepositOutPoint(types.MainTxid{1}, 0)
	pegData := types.TwoWayPegData{
		Deposits: map[types.OutPoint]types.Deposit{
			outpoint: {Address: addr.String(), Value: 5000},
		},
	}
	err := db.Update(func(tx *bolt.Tx) error { return s.ConnectTwoWayPegData(tx, pegData, 0) })
	if err != nil {
		t.Fatalf("ConnectTwoWayPegData: %v", err)
	}
	var utxos map[types.OutPoint]types.Output
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		utxos, err = s.GetUtxos(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	output, ok := utxos[outpoint]
	if !ok {
		t.Fatal("deposit utxo not created")
	}
	if output.GetValue() != 5000 || output.Address != addr {
		t.Errorf("deposit utxo mismatch: %+v", output)
	}
}

func TestConnectTwoWayPegData_BundleEmergenceGatedByFailureGap(t *testing.T) {
	s, db := openTestState(t)
	spenderAddr, _, _ := testutil.Keypair()
	mainAddr := types.Base58CheckEncode(0x00, make([]byte, 20))
	genesis := testutil.SampleBody(nil, []types.Output{testutil.SampleWithdrawalOutput(spenderAddr, 1000, 10, mainAddr)})
	if err := db.Update(func(tx *bolt.Tx) error { return s.ConnectBody(tx, genesis) }); err != nil {
		t.Fatalf("ConnectBody: %v", err)
	}

	// blockHeight=0: (0+1)-0 = 1, not > WithdrawalBundleFailureGap(4), so no bundle should emerge yet.
	err := db.Update(func(tx *bolt.Tx) error { return s.ConnectTwoWayPegData(tx, types.TwoWayPegData{}, 0) })
	if err != nil {
		t.Fatalf("ConnectTwoWayPegData: %v", err)
	}
	var bundle *types.WithdrawalBundle
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		bundle, err = s.GetPendingWithdrawalBundle(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if bundle != nil {
		t.Fatal("bundle should not have emerged before the failure gap elapsed")
	}

	// blockHeight=4: (4+1)-0 = 5 > 4, bundle should emerge.
	err = db.Update(func(tx *bolt.Tx) error { return s.ConnectTwoWayPegData(tx, types.TwoWayPegData{}, 4) })
	if err != nil {
		t.Fatalf("ConnectTwoWayPegData: %v", err)
	}
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		bundle, err = s.GetPendingWithdrawalBundle(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if bundle == nil {
		t.Fatal("bundle should have emerged once the failure gap elapsed")
	}
}

func TestConnectTwoWayPegData_BundleFailureRefundsUtxos(t *testing.T) {
	s, db := openTestState(t)
	spenderAddr, _, _ := testutil.Keypair()
	mainAddr := types.Base58CheckEncode(0x00, make([]byte, 20))
	genesis := testutil.SampleBody(nil, []types.Output{testutil.SampleWithdrawalOutput(spenderAddr, 1000, 10, mainAddr)})
	if err := db.Update(func(tx *bolt.Tx) error { return s.ConnectBody(tx, genesis) }); err != nil {
		t.Fatalf("ConnectBody: %v", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error { return s.ConnectTwoWayPegData(tx, types.TwoWayPegData{}, 4) }); err != nil {
		t.Fatalf("ConnectTwoWayPegData emerge: %v", err)
	}

	var bundle *types.WithdrawalBundle
	err := db.View(func(tx *bolt.Tx) error {
		var err error
		bundle, err = s.GetPendingWithdrawalBundle(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if bundle == nil {
		t.Fatal("bundle did not emerge")
	}
	txid := bundle.Txid()

	failedData := types.TwoWayPegData{BundleStatuses: map[types.MainTxid]types.WithdrawalBundleStatus{txid: types.WithdrawalBundleFailed}}
	if err := db.Update(func(tx *bolt.Tx) error { return s.ConnectTwoWayPegData(tx, failedData, 5) }); err != nil {
		t.Fatalf("ConnectTwoWayPegData fail: %v", err)
	}

	var utxos map[types.OutPoint]types.Output
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		utxos, err = s.GetUtxos(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(utxos) != 1 {
		t.Errorf("len(utxos) = %d, want 1 (refunded)", len(utxos))
	}

	err = db.View(func(tx *bolt.Tx) error {
		var err error
		bundle, err = s.GetPendingWithdrawalBundle(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if bundle != nil {
		t.Error("pending bundle should be cleared after failure")
	}
}
