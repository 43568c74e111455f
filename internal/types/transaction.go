package types

import "errors"

// Transaction is an ordered list of inputs and outputs. Authorisations are
// not embedded; they travel alongside as a parallel list (AuthorizedTransaction)
// or, within a Body, as a flat concatenation in transaction order.
type Transaction struct {
	Inputs  []OutPoint `cbor:"1,keyasint"`
	Outputs []Output   `cbor:"2,keyasint"`
}

// Txid is the content hash of the whole transaction.
func (t Transaction) Txid() Txid {
	return Txid(hash(t))
}

// FilledTransaction pairs a Transaction with the Outputs its inputs resolved
// to, in input order.
type FilledTransaction struct {
	Transaction Transaction
	SpentUtxos  []Output
}

// GetValueIn sums the value of every resolved input.
func (f FilledTransaction) GetValueIn() uint64 {
	var total uint64
	for _, o := range f.SpentUtxos {
		total += o.GetValue()
	}
	return total
}

// GetValueOut sums the value of every output.
func (f FilledTransaction) GetValueOut() uint64 {
	var total uint64
	for _, o := range f.Transaction.Outputs {
		total += o.GetValue()
	}
	return total
}

// ErrValueOutExceedsValueIn is returned by GetFee when outputs exceed inputs.
var ErrValueOutExceedsValueIn = errors.New("value out exceeds value in")

// GetFee returns value_in - value_out, or ErrValueOutExceedsValueIn if
// negative.
func (f FilledTransaction) GetFee() (uint64, error) {
	valueIn, valueOut := f.GetValueIn(), f.GetValueOut()
	if valueOut > valueIn {
		return 0, ErrValueOutExceedsValueIn
	}
	return valueIn - valueOut, nil
}

// AuthorizedTransaction is a Transaction plus one Authorization per input, in
// input order.
type AuthorizedTransaction struct {
	Transaction    Transaction     `cbor:"1,keyasint"`
	Authorizations []Authorization `cbor:"2,keyasint"`
}
