package types

import (
	"github.com/fxamacker/cbor/v2"
	"lukechampine.com/blake3"
)

// Txid identifies a sidechain transaction.
type Txid [32]byte

// BlockHash identifies a sidechain header.
type BlockHash [32]byte

// MerkleRoot binds a Body to its Header.
type MerkleRoot [32]byte

// MainBlockHash identifies a mainchain block.
type MainBlockHash [32]byte

// MainTxid identifies a mainchain transaction.
type MainTxid [32]byte

var hashMode = cbor.CoreDetEncOptions()

// hash returns the blake3 content hash of the canonical CBOR encoding of v.
// Every consensus-relevant hash (txid, merkle root, header hash, withdrawal
// bundle commitment) is derived from this single function so that two
// implementations agreeing on field layout agree on every hash.
func hash(v any) [32]byte {
	data, err := MarshalCanonical(v)
	if err != nil {
		panic(err)
	}
	return blake3.Sum256(data)
}

// MarshalCanonical renders v with CBOR's core deterministic encoding, the
// same encoding every consensus hash and every signed message is built from.
func MarshalCanonical(v any) ([]byte, error) {
	em, err := hashMode.EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(v)
}
