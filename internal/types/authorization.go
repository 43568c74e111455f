package types

import "crypto/ed25519"

// Authorization is a public key and a signature over a serialised
// Transaction. The address derived from PublicKey must equal the address of
// the output it spends; that check, and the signature verification itself,
// live in the authorization package.
type Authorization struct {
	PublicKey ed25519.PublicKey `cbor:"1,keyasint"`
	Signature []byte            `cbor:"2,keyasint"`
}

// GetAddress derives the sidechain Address authorized by this public key.
func (a Authorization) GetAddress() Address {
	return DeriveAddress(a.PublicKey)
}
