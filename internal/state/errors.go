package state

import (
	"errors"
	"fmt"

	"github.com/djkazic/plainchain/internal/types"
)

// ErrAuthorization is returned by ValidateBody when the body's signatures
// fail to verify.
var ErrAuthorization = errors.New("failed to verify authorization")

// ErrNotEnoughValueIn is returned when a filled transaction spends less
// value than it creates.
var ErrNotEnoughValueIn = errors.New("value in is less than value out")

// ErrNotEnoughFees is returned when a body's coinbase value exceeds the
// fees its transactions actually pay.
var ErrNotEnoughFees = errors.New("total fees less than coinbase value")

// ErrUtxoDoubleSpent is returned when a body spends the same outpoint
// twice across its transactions.
var ErrUtxoDoubleSpent = errors.New("utxo double spent")

// ErrWrongPubKeyForAddress is returned when an authorization's derived
// address does not match the address of the utxo it spends.
var ErrWrongPubKeyForAddress = errors.New("wrong public key for address")

// NoUtxoError is returned by FillTransaction when an input does not name a
// utxo currently in the set.
type NoUtxoError struct {
	Outpoint types.OutPoint
}

func (e *NoUtxoError) Error() string {
	return fmt.Sprintf("utxo %s doesn't exist", e.Outpoint)
}

// BundleTooHeavyError is returned by collectWithdrawalBundle when the
// assembled bundle transaction exceeds the standard mainchain weight limit.
type BundleTooHeavyError struct {
	Weight    uint64
	MaxWeight uint64
}

func (e *BundleTooHeavyError) Error() string {
	return fmt.Sprintf("bundle too heavy %d > %d", e.Weight, e.MaxWeight)
}
