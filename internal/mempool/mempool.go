// Package mempool holds not-yet-included transactions and the utxos they
// spend, so a second transaction spending the same utxo is rejected before
// it ever reaches a block.
package mempool

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/store"
	"github.com/djkazic/plainchain/internal/types"
)

const (
	bucketTransactions = "transactions"
	bucketSpentUtxos   = "spent_utxos"
)

// ErrUtxoDoubleSpent is returned by Put when the transaction spends a utxo
// some other mempool transaction already spends.
var ErrUtxoDoubleSpent = errors.New("can't add transaction, utxo double spent")

// MemPool is the set of candidate transactions a miner may include in its
// next block.
type MemPool struct {
	db     *bolt.DB
	logger *zap.Logger
}

// New declares the mempool's buckets inside db and returns a handle to them.
func New(db *bolt.DB, logger *zap.Logger) (*MemPool, error) {
	if err := store.EnsureBuckets(db, bucketTransactions, bucketSpentUtxos); err != nil {
		return nil, err
	}
	return &MemPool{db: db, logger: logger}, nil
}

// Put admits an authorized transaction, rejecting it if any of its inputs
// is already spent by a transaction already in the mempool.
func (m *MemPool) Put(tx *bolt.Tx, at types.AuthorizedTransaction) error {
	spent := tx.Bucket([]byte(bucketSpentUtxos))
	for _, input := range at.Transaction.Inputs {
		if spent.Get(input.Bytes()) != nil {
			return ErrUtxoDoubleSpent
		}
	}
	for _, input := range at.Transaction.Inputs {
		if err := spent.Put(input.Bytes(), []byte{}); err != nil {
			return err
		}
	}
	data, err := types.MarshalCanonical(at)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	txid := at.Transaction.Txid()
	transactions := tx.Bucket([]byte(bucketTransactions))
	if err := transactions.Put(txid[:], data); err != nil {
		return err
	}
	m.logger.Debug("transaction added to mempool", zap.Stringer("txid", txidHex(txid)))
	return nil
}

// Delete removes a transaction from the mempool and releases the utxos it
// held spent, so a later transaction spending the same inputs is admitted.
// The upstream implementation this is modeled on never released spent_utxos
// here, so every deleted transaction's inputs leaked and stayed
// permanently unspendable by anything else in the mempool; this keeps the
// lookup but clears the entries.
func (m *MemPool) Delete(tx *bolt.Tx, txid types.Txid) error {
	transactions := tx.Bucket([]byte(bucketTransactions))
	v := transactions.Get(txid[:])
	if v == nil {
		return nil
	}
	var at types.AuthorizedTransaction
	if err := cbor.Unmarshal(v, &at); err != nil {
		return fmt.Errorf("unmarshal transaction %x: %w", txid, err)
	}
	spent := tx.Bucket([]byte(bucketSpentUtxos))
	for _, input := range at.Transaction.Inputs {
		if err := spent.Delete(input.Bytes()); err != nil {
			return err
		}
	}
	return transactions.Delete(txid[:])
}

// Take returns up to number transactions, in key order.
func (m *MemPool) Take(tx *bolt.Tx, number int) ([]types.AuthorizedTransaction, error) {
	transactions := tx.Bucket([]byte(bucketTransactions))
	var result []types.AuthorizedTransaction
	c := transactions.Cursor()
	for k, v := c.First(); k != nil && len(result) < number; k, v = c.Next() {
		var at types.AuthorizedTransaction
		if err := cbor.Unmarshal(v, &at); err != nil {
			return nil, fmt.Errorf("unmarshal transaction %x: %w", k, err)
		}
		result = append(result, at)
	}
	return result, nil
}

// Count returns the number of transactions currently in the mempool.
func (m *MemPool) Count(tx *bolt.Tx) int {
	return tx.Bucket([]byte(bucketTransactions)).Stats().KeyN
}

// TakeAll returns every transaction currently in the mempool, in key order.
func (m *MemPool) TakeAll(tx *bolt.Tx) ([]types.AuthorizedTransaction, error) {
	transactions := tx.Bucket([]byte(bucketTransactions))
	var result []types.AuthorizedTransaction
	c := transactions.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var at types.AuthorizedTransaction
		if err := cbor.Unmarshal(v, &at); err != nil {
			return nil, fmt.Errorf("unmarshal transaction %x: %w", k, err)
		}
		result = append(result, at)
	}
	return result, nil
}

type txidHex types.Txid

func (t txidHex) String() string { return fmt.Sprintf("%x", [32]byte(t)) }
