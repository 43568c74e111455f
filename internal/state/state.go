// Package state implements the UTXO set and its transitions: filling and
// validating transactions and bodies, connecting accepted bodies, and
// folding in mainchain two-way peg data (deposits, withdrawal bundle
// aggregation and settlement).
package state

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/djkazic/plainchain/internal/authorization"
	"github.com/djkazic/plainchain/internal/mainchain"
	"github.com/djkazic/plainchain/internal/store"
	"github.com/djkazic/plainchain/internal/types"
)

const (
	bucketUtxos                       = "utxos"
	bucketPendingWithdrawalBundle      = "pending_withdrawal_bundle"
	bucketLastWithdrawalBundleFailure  = "last_withdrawal_bundle_failure_height"
	bucketLastDepositBlock             = "last_deposit_block"
)

// WithdrawalBundleFailureGap is the number of blocks that must elapse after
// a bundle fails before a new one is allowed to emerge.
const WithdrawalBundleFailureGap = 4

// singleton is the lone key used by the single-record buckets.
var singleton = []byte{0}

// State is the UTXO set and its peg bookkeeping.
type State struct {
	db     *bolt.DB
	logger *zap.Logger
}

// New declares state's buckets inside db and returns a handle to them.
func New(db *bolt.DB, logger *zap.Logger) (*State, error) {
	if err := store.EnsureBuckets(db,
		bucketUtxos,
		bucketPendingWithdrawalBundle,
		bucketLastWithdrawalBundleFailure,
		bucketLastDepositBlock,
	); err != nil {
		return nil, err
	}
	return &State{db: db, logger: logger}, nil
}

// GetUtxos returns the entire UTXO set. Only useful against small test
// chains or for diagnostics; wallet code should prefer GetUtxosByAddresses.
func (s *State) GetUtxos(tx *bolt.Tx) (map[types.OutPoint]types.Output, error) {
	utxos := make(map[types.OutPoint]types.Output)
	b := tx.Bucket([]byte(bucketUtxos))
	err := b.ForEach(func(k, v []byte) error {
		outpoint, err := types.OutPointFromBytes(k)
		if err != nil {
			return err
		}
		var output types.Output
		if err := cbor.Unmarshal(v, &output); err != nil {
			return err
		}
		utxos[outpoint] = output
		return nil
	})
	return utxos, err
}

// GetUtxosByAddresses returns the subset of the UTXO set paying any of the
// given addresses.
func (s *State) GetUtxosByAddresses(tx *bolt.Tx, addresses map[types.Address]struct{}) (map[types.OutPoint]types.Output, error) {
	utxos := make(map[types.OutPoint]types.Output)
	b := tx.Bucket([]byte(bucketUtxos))
	err := b.ForEach(func(k, v []byte) error {
		var output types.Output
		if err := cbor.Unmarshal(v, &output); err != nil {
			return err
		}
		if _, ok := addresses[output.Address]; !ok {
			return nil
		}
		outpoint, err := types.OutPointFromBytes(k)
		if err != nil {
			return err
		}
		utxos[outpoint] = output
		return nil
	})
	return utxos, err
}

// UtxoCount returns the number of unspent outputs in the current set.
func (s *State) UtxoCount(tx *bolt.Tx) int {
	return tx.Bucket([]byte(bucketUtxos)).Stats().KeyN
}

func (s *State) getUtxo(tx *bolt.Tx, outpoint types.OutPoint) (*types.Output, error) {
	b := tx.Bucket([]byte(bucketUtxos))
	v := b.Get(outpoint.Bytes())
	if v == nil {
		return nil, nil
	}
	var output types.Output
	if err := cbor.Unmarshal(v, &output); err != nil {
		return nil, err
	}
	return &output, nil
}

// FillTransaction resolves every input of transaction against the current
// UTXO set, returning NoUtxoError for the first input that does not exist.
func (s *State) FillTransaction(tx *bolt.Tx, transaction types.Transaction) (types.FilledTransaction, error) {
	spentUtxos := make([]types.Output, 0, len(transaction.Inputs))
	for _, input := range transaction.Inputs {
		output, err := s.getUtxo(tx, input)
		if err != nil {
			return types.FilledTransaction{}, err
		}
		if output == nil {
			return types.FilledTransaction{}, &NoUtxoError{Outpoint: input}
		}
		spentUtxos = append(spentUtxos, *output)
	}
	return types.FilledTransaction{Transaction: transaction, SpentUtxos: spentUtxos}, nil
}

// ValidateFilledTransaction checks that a filled transaction does not spend
// more value than it creates, and returns the fee it pays.
func ValidateFilledTransaction(filled types.FilledTransaction) (uint64, error) {
	fee, err := filled.GetFee()
	if err != nil {
		return 0, ErrNotEnoughValueIn
	}
	return fee, nil
}

// ValidateBody fills and validates every transaction in body, checks for
// intra-body double spends, checks the coinbase does not exceed total fees,
// checks every authorization's derived address against the utxo it spends,
// and verifies every signature. It returns the total fees paid.
func (s *State) ValidateBody(tx *bolt.Tx, body types.Body) (uint64, error) {
	coinbaseValue := body.CoinbaseValue()

	var totalFees uint64
	spent := make(map[types.OutPoint]struct{})
	filledTransactions := make([]types.FilledTransaction, 0, len(body.Transactions))
	for _, transaction := range body.Transactions {
		filled, err := s.FillTransaction(tx, transaction)
		if err != nil {
			return 0, err
		}
		filledTransactions = append(filledTransactions, filled)
	}
	for _, filled := range filledTransactions {
		for _, input := range filled.Transaction.Inputs {
			if _, ok := spent[input]; ok {
				return 0, ErrUtxoDoubleSpent
			}
			spent[input] = struct{}{}
		}
		fee, err := ValidateFilledTransaction(filled)
		if err != nil {
			return 0, err
		}
		totalFees += fee
	}
	if coinbaseValue > totalFees {
		return 0, ErrNotEnoughFees
	}

	var spentUtxos []types.Output
	for _, filled := range filledTransactions {
		spentUtxos = append(spentUtxos, filled.SpentUtxos...)
	}
	if len(body.Authorizations) != len(spentUtxos) {
		return 0, fmt.Errorf("%d authorizations for %d spent utxos", len(body.Authorizations), len(spentUtxos))
	}
	for i, auth := range body.Authorizations {
		if auth.GetAddress() != spentUtxos[i].Address {
			return 0, ErrWrongPubKeyForAddress
		}
	}
	if err := authorization.VerifyBody(body); err != nil {
		return 0, ErrAuthorization
	}
	return totalFees, nil
}

// ConnectBody applies an already-validated body to the UTXO set: coinbase
// outputs and transaction outputs are inserted, spent inputs are deleted.
func (s *State) ConnectBody(tx *bolt.Tx, body types.Body) error {
	b := tx.Bucket([]byte(bucketUtxos))
	merkleRoot := body.MerkleRoot()
	for vout, output := range body.Coinbase {
		outpoint := types.CoinbaseOutPoint(merkleRoot, uint32(vout))
		if err := putOutput(b, outpoint, output); err != nil {
			return err
		}
	}
	for _, transaction := range body.Transactions {
		txid := transaction.Txid()
		for _, input := range transaction.Inputs {
			if err := b.Delete(input.Bytes()); err != nil {
				return err
			}
		}
		for vout, output := range transaction.Outputs {
			outpoint := types.RegularOutPoint(txid, uint32(vout))
			if err := putOutput(b, outpoint, output); err != nil {
				return err
			}
		}
	}
	return nil
}

func putOutput(b *bolt.Bucket, outpoint types.OutPoint, output types.Output) error {
	data, err := types.MarshalCanonical(output)
	if err != nil {
		return err
	}
	return b.Put(outpoint.Bytes(), data)
}

// GetPendingWithdrawalBundle returns the currently pending bundle, if any.
func (s *State) GetPendingWithdrawalBundle(tx *bolt.Tx) (*types.WithdrawalBundle, error) {
	b := tx.Bucket([]byte(bucketPendingWithdrawalBundle))
	v := b.Get(singleton)
	if v == nil {
		return nil, nil
	}
	var bundle types.WithdrawalBundle
	if err := cbor.Unmarshal(v, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// GetLastDepositBlockHash returns the mainchain block hash that the last
// ingested deposit batch was current as of.
func (s *State) GetLastDepositBlockHash(tx *bolt.Tx) (*types.MainBlockHash, error) {
	b := tx.Bucket([]byte(bucketLastDepositBlock))
	v := b.Get(singleton)
	if v == nil {
		return nil, nil
	}
	var hash types.MainBlockHash
	copy(hash[:], v)
	return &hash, nil
}

func lastWithdrawalBundleFailureHeight(tx *bolt.Tx) uint32 {
	b := tx.Bucket([]byte(bucketLastWithdrawalBundleFailure))
	v := b.Get(singleton)
	if v == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v)
}

func putUint32(b *bolt.Bucket, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return b.Put(singleton, buf[:])
}

// ConnectTwoWayPegData folds mainchain peg history into the UTXO set:
// deposits become new utxos (an unparseable destination address silently
// drops the deposit, since the mainchain enforces no such rule), a new
// bundle may emerge once the failure gap has elapsed and none is pending,
// and settled bundle statuses either refund spent utxos (Failed) or retire
// the pending bundle record (Confirmed).
func (s *State) ConnectTwoWayPegData(tx *bolt.Tx, pegData types.TwoWayPegData, blockHeight uint32) error {
	utxos := tx.Bucket([]byte(bucketUtxos))

	if pegData.DepositBlockHash != nil {
		lastDeposit := tx.Bucket([]byte(bucketLastDepositBlock))
		if err := lastDeposit.Put(singleton, pegData.DepositBlockHash[:]); err != nil {
			return err
		}
	}
	for outpoint, deposit := range pegData.Deposits {
		address, err := types.ParseAddress(deposit.Address)
		if err != nil {
			s.logger.Debug("dropping deposit with unparseable address",
				zap.String("address", deposit.Address), zap.Error(err))
			continue
		}
		output := types.Output{Address: address, Content: types.ValueContent(deposit.Value)}
		if err := putOutput(utxos, outpoint, output); err != nil {
			return err
		}
	}

	pending := tx.Bucket([]byte(bucketPendingWithdrawalBundle))
	failureHeight := tx.Bucket([]byte(bucketLastWithdrawalBundleFailure))
	lastFailure := lastWithdrawalBundleFailureHeight(tx)
	if (blockHeight+1)-lastFailure > WithdrawalBundleFailureGap && pending.Get(singleton) == nil {
		bundle, err := s.collectWithdrawalBundle(tx, blockHeight+1)
		if err != nil {
			return err
		}
		if bundle != nil {
			for outpoint := range bundle.SpentUtxos {
				if err := utxos.Delete(outpoint.Bytes()); err != nil {
					return err
				}
			}
			data, err := types.MarshalCanonical(*bundle)
			if err != nil {
				return err
			}
			if err := pending.Put(singleton, data); err != nil {
				return err
			}
		}
	}

	for txid, status := range pegData.BundleStatuses {
		bundle, err := s.GetPendingWithdrawalBundle(tx)
		if err != nil {
			return err
		}
		if bundle == nil || bundle.Txid() != txid {
			continue
		}
		switch status {
		case types.WithdrawalBundleFailed:
			if err := putUint32(failureHeight, blockHeight+1); err != nil {
				return err
			}
			if err := pending.Delete(singleton); err != nil {
				return err
			}
			for outpoint, output := range bundle.SpentUtxos {
				if err := putOutput(utxos, outpoint, output); err != nil {
					return err
				}
			}
		case types.WithdrawalBundleConfirmed:
			if err := pending.Delete(singleton); err != nil {
				return err
			}
		}
	}
	return nil
}

// aggregatedWithdrawal accumulates every Withdrawal utxo paying the same
// mainchain destination into a single bundle output.
type aggregatedWithdrawal struct {
	mainAddress string
	value       uint64
	mainFee     uint64
	spentUtxos  map[types.OutPoint]types.Output
}

// bundle0Weight and outputWeight are taken from the standard mainchain
// transaction weight model: a bundle with zero outputs weighs 504wu, and
// each additional output adds 128wu.
const (
	bundle0Weight      = 504
	outputWeight       = 128
	maxStandardTxWeight = 400000
)

// MaxBundleOutputs bounds how many destinations a single bundle aggregates,
// derived from the standard mainchain weight limit.
const MaxBundleOutputs = (maxStandardTxWeight - bundle0Weight) / outputWeight

func (s *State) collectWithdrawalBundle(tx *bolt.Tx, blockHeight uint32) (*types.WithdrawalBundle, error) {
	utxos := tx.Bucket([]byte(bucketUtxos))
	aggregated := make(map[string]*aggregatedWithdrawal)
	err := utxos.ForEach(func(k, v []byte) error {
		var output types.Output
		if err := cbor.Unmarshal(v, &output); err != nil {
			return err
		}
		if !output.Content.IsWithdrawal() {
			return nil
		}
		outpoint, err := types.OutPointFromBytes(k)
		if err != nil {
			return err
		}
		a, ok := aggregated[output.Content.MainAddress]
		if !ok {
			a = &aggregatedWithdrawal{mainAddress: output.Content.MainAddress, spentUtxos: make(map[types.OutPoint]types.Output)}
			aggregated[output.Content.MainAddress] = a
		}
		a.value += output.Content.Value
		if output.Content.MainFee > a.mainFee {
			a.mainFee = output.Content.MainFee
		}
		a.spentUtxos[outpoint] = output
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(aggregated) == 0 {
		return nil, nil
	}

	withdrawals := make([]*aggregatedWithdrawal, 0, len(aggregated))
	for _, a := range aggregated {
		withdrawals = append(withdrawals, a)
	}
	sortAggregatedWithdrawals(withdrawals)

	var fee uint64
	spentUtxos := make(map[types.OutPoint]types.Output)
	var bundleOutputs []types.MainTxOut
	var dropped int
	for i, a := range withdrawals {
		if len(bundleOutputs) >= MaxBundleOutputs {
			dropped = len(withdrawals) - i
			break
		}
		address, err := mainchain.ParseAddress(a.mainAddress)
		if err != nil {
			s.logger.Debug("dropping withdrawal with unparseable mainchain destination",
				zap.String("address", a.mainAddress), zap.Error(err))
			continue
		}
		bundleOutputs = append(bundleOutputs, types.MainTxOut{Value: int64(a.value), PkScript: address.ScriptPubKey()})
		for outpoint, output := range a.spentUtxos {
			spentUtxos[outpoint] = output
		}
		fee += a.mainFee
	}
	if dropped > 0 {
		s.logger.Warn("dropping withdrawal destinations past bundle capacity", zap.Int("dropped", dropped))
	}

	inputs := make([]types.OutPoint, 0, len(spentUtxos)+1)
	for outpoint := range spentUtxos {
		inputs = append(inputs, outpoint)
	}
	sort.Slice(inputs, func(i, j int) bool { return bytes.Compare(inputs[i].Bytes(), inputs[j].Bytes()) < 0 })
	inputs = append(inputs, types.RegularOutPoint(types.Txid{}, blockHeight))
	commitment := commitInputs(inputs)

	var feeLE [8]byte
	binary.LittleEndian.PutUint64(feeLE[:], fee)

	transaction := types.MainTx{
		Version:  2,
		LockTime: 0,
		Inputs: []types.MainTxIn{{
			ScriptSig: mainchain.OpFalseScript(),
		}},
		Outputs: append([]types.MainTxOut{
			{Value: 0, PkScript: mainchain.OpReturnScript([]byte{0x44})},
			{Value: 0, PkScript: mainchain.OpReturnScript(feeLE[:])},
			{Value: 0, PkScript: mainchain.OpReturnScript(commitment[:])},
		}, bundleOutputs...),
	}

	if weight := transaction.Weight(); weight > maxStandardTxWeight {
		return nil, &BundleTooHeavyError{Weight: weight, MaxWeight: maxStandardTxWeight}
	}

	return &types.WithdrawalBundle{SpentUtxos: spentUtxos, Transaction: transaction}, nil
}

func commitInputs(inputs []types.OutPoint) [32]byte {
	data, err := types.MarshalCanonical(inputs)
	if err != nil {
		panic(err)
	}
	return blake3.Sum256(data)
}

// sortAggregatedWithdrawals orders withdrawals by descending (main_fee,
// value, main_address), matching the bundle-output precedence a miner
// would want: highest mainchain fee first.
func sortAggregatedWithdrawals(withdrawals []*aggregatedWithdrawal) {
	for i := 1; i < len(withdrawals); i++ {
		for j := i; j > 0; j-- {
			if less(withdrawals[j], withdrawals[j-1]) {
				withdrawals[j], withdrawals[j-1] = withdrawals[j-1], withdrawals[j]
			} else {
				break
			}
		}
	}
}

func less(a, b *aggregatedWithdrawal) bool {
	if a.mainFee != b.mainFee {
		return a.mainFee > b.mainFee
	}
	if a.value != b.value {
		return a.value > b.value
	}
	return a.mainAddress > b.mainAddress
}
