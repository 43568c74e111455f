package types

// Body holds a block's coinbase outputs, its transactions, and the flat
// concatenation of every transaction's authorisations in transaction order.
type Body struct {
	Coinbase       []Output        `cbor:"1,keyasint"`
	Transactions   []Transaction   `cbor:"2,keyasint"`
	Authorizations []Authorization `cbor:"3,keyasint"`
}

// NewBody assembles a Body from a list of authorized transactions and a
// coinbase, flattening each transaction's authorisations in order.
func NewBody(authorized []AuthorizedTransaction, coinbase []Output) Body {
	numAuths := 0
	for _, at := range authorized {
		numAuths += len(at.Transaction.Inputs)
	}
	authorizations := make([]Authorization, 0, numAuths)
	transactions := make([]Transaction, 0, len(authorized))
	for _, at := range authorized {
		authorizations = append(authorizations, at.Authorizations...)
		transactions = append(transactions, at.Transaction)
	}
	return Body{
		Coinbase:       coinbase,
		Transactions:   transactions,
		Authorizations: authorizations,
	}
}

// MerkleRoot is the content hash of (coinbase, transactions). It is a
// placeholder for a real Merkle tree: both peers must agree on this exact
// hash for headers to match.
func (b Body) MerkleRoot() MerkleRoot {
	pair := struct {
		Coinbase     []Output
		Transactions []Transaction
	}{b.Coinbase, b.Transactions}
	return MerkleRoot(hash(pair))
}

// Inputs returns every input spent by every transaction in the body, in
// transaction order.
func (b Body) Inputs() []OutPoint {
	var inputs []OutPoint
	for _, t := range b.Transactions {
		inputs = append(inputs, t.Inputs...)
	}
	return inputs
}

// Outputs returns every output produced by the body, keyed by the OutPoint it
// will be spendable at once connected.
func (b Body) Outputs() map[OutPoint]Output {
	merkleRoot := b.MerkleRoot()
	outputs := make(map[OutPoint]Output)
	for vout, output := range b.Coinbase {
		outputs[CoinbaseOutPoint(merkleRoot, uint32(vout))] = output
	}
	for _, t := range b.Transactions {
		txid := t.Txid()
		for vout, output := range t.Outputs {
			outputs[RegularOutPoint(txid, uint32(vout))] = output
		}
	}
	return outputs
}

// CoinbaseValue sums the value of every coinbase output.
func (b Body) CoinbaseValue() uint64 {
	var total uint64
	for _, o := range b.Coinbase {
		total += o.GetValue()
	}
	return total
}
