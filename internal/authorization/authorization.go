// Package authorization implements signing and parallel batch verification
// of transaction authorisations, grounded on the ed25519 signature scheme
// named by contract in the data model: an Authorization carries a public key
// and a signature over the serialised parent Transaction, and is valid only
// if the address derived from that key matches the spent output's address.
package authorization

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/djkazic/plainchain/internal/types"
)

// ErrWrongKeypairForAddress is returned by Authorize when the supplied key
// does not derive the claimed address.
var ErrWrongKeypairForAddress = errors.New("wrong keypair for address")

// Sign produces a raw ed25519 signature over the canonical encoding of a
// transaction.
func Sign(priv ed25519.PrivateKey, transaction types.Transaction) ([]byte, error) {
	message, err := types.MarshalCanonical(transaction)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}
	return ed25519.Sign(priv, message), nil
}

// KeyedAddress pairs an address with the key authorized to spend it, the
// input shape Authorize takes for every input of a transaction.
type KeyedAddress struct {
	Address types.Address
	Private ed25519.PrivateKey
}

// Authorize signs transaction once per input key and assembles an
// AuthorizedTransaction, in the same order as addressesKeys. It fails if any
// supplied key does not derive its claimed address.
func Authorize(addressesKeys []KeyedAddress, transaction types.Transaction) (types.AuthorizedTransaction, error) {
	message, err := types.MarshalCanonical(transaction)
	if err != nil {
		return types.AuthorizedTransaction{}, fmt.Errorf("marshal transaction: %w", err)
	}
	authorizations := make([]types.Authorization, 0, len(addressesKeys))
	for _, ak := range addressesKeys {
		pub := ak.Private.Public().(ed25519.PublicKey)
		derived := types.DeriveAddress(pub)
		if derived != ak.Address {
			return types.AuthorizedTransaction{}, fmt.Errorf("%w: address = %s, derived = %s",
				ErrWrongKeypairForAddress, ak.Address, derived)
		}
		authorizations = append(authorizations, types.Authorization{
			PublicKey: pub,
			Signature: ed25519.Sign(ak.Private, message),
		})
	}
	return types.AuthorizedTransaction{Transaction: transaction, Authorizations: authorizations}, nil
}
