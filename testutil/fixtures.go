package testutil

import (
	"crypto/ed25519"

	"github.com/djkazic/plainchain/internal/authorization"
	"github.com/djkazic/plainchain/internal/types"
)

// Keypair generates a fresh ed25519 keypair and the address it derives.
func Keypair() (types.Address, ed25519.PublicKey, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	return types.DeriveAddress(pub), pub, priv
}

// SampleOutput builds a plain value-carrying output paying address.
func SampleOutput(address types.Address, value uint64) types.Output {
	return types.Output{Address: address, Content: types.ValueContent(value)}
}

// SampleWithdrawalOutput builds a withdrawal-bound output paying a mainchain
// address.
func SampleWithdrawalOutput(address types.Address, value, mainFee uint64, mainAddress string) types.Output {
	return types.Output{Address: address, Content: types.WithdrawalContent(value, mainFee, mainAddress)}
}

// SampleTransaction builds an unsigned transaction spending inputs and
// producing outputs.
func SampleTransaction(inputs []types.OutPoint, outputs []types.Output) types.Transaction {
	return types.Transaction{Inputs: inputs, Outputs: outputs}
}

// SignTransaction authorizes transaction with one key per input, in order.
func SignTransaction(transaction types.Transaction, keys []ed25519.PrivateKey, addresses []types.Address) (types.AuthorizedTransaction, error) {
	addressesKeys := make([]authorization.KeyedAddress, len(keys))
	for i, priv := range keys {
		addressesKeys[i] = authorization.KeyedAddress{Address: addresses[i], Private: priv}
	}
	return authorization.Authorize(addressesKeys, transaction)
}

// SampleBody wraps authorized transactions and coinbase outputs into a Body.
func SampleBody(authorized []types.AuthorizedTransaction, coinbase []types.Output) types.Body {
	return types.NewBody(authorized, coinbase)
}

// SampleHeader builds a Header bound to body's merkle root.
func SampleHeader(body types.Body, prevSideHash types.BlockHash, prevMainHash types.MainBlockHash) types.Header {
	return types.Header{
		MerkleRoot:   body.MerkleRoot(),
		PrevSideHash: prevSideHash,
		PrevMainHash: prevMainHash,
	}
}

// GenesisBody is an empty body with a single coinbase output. It has no
// transactions and so pays no fees, which means ValidateBody accepts it only
// when coinbaseValue is 0.
func GenesisBody(coinbaseAddress types.Address, coinbaseValue uint64) types.Body {
	return types.NewBody(nil, []types.Output{SampleOutput(coinbaseAddress, coinbaseValue)})
}
