// Package types implements the sidechain data model: addresses, outpoints,
// outputs, transactions, bodies, headers and withdrawal bundles.
package types

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
	"lukechampine.com/blake3"
)

// AddressLen is the length in bytes of a sidechain Address.
const AddressLen = 20

// Address is a 20-byte digest derived from an ed25519 public key: the first
// AddressLen bytes of a blake3 extendable-output hash of the key.
type Address [AddressLen]byte

// DeriveAddress computes the Address that a given ed25519 public key
// authorizes spends for.
func DeriveAddress(pub ed25519.PublicKey) Address {
	var addr Address
	h := blake3.New(AddressLen, nil)
	h.Write(pub)
	copy(addr[:], h.Sum(nil))
	return addr
}

// sidechainAddressVersion is the Base58Check version byte for sidechain
// addresses. It has no mainchain-compatible meaning; it just keeps a
// sidechain address from being mistaken for a raw mainchain one.
const sidechainAddressVersion = 0x44

// String renders the address as Base58Check using the Bitcoin alphabet.
func (a Address) String() string {
	return Base58CheckEncode(sidechainAddressVersion, a[:])
}

// ParseAddress decodes a Base58Check-encoded address string.
func ParseAddress(s string) (Address, error) {
	version, decoded, err := Base58CheckDecode(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	if version != sidechainAddressVersion {
		return Address{}, fmt.Errorf("parse address %q: unexpected version byte 0x%02x", s, version)
	}
	if len(decoded) != AddressLen {
		return Address{}, fmt.Errorf("parse address %q: wrong length %d, want %d", s, len(decoded), AddressLen)
	}
	var addr Address
	copy(addr[:], decoded)
	return addr, nil
}

// Base58CheckEncode appends a version byte and a double-SHA256 checksum and
// base58-encodes the result, matching Bitcoin's Base58Check (mr-tron/base58
// itself only does the alphabet conversion, not the version byte or the
// checksum). Exported so internal/mainchain can decode legacy mainchain
// addresses with the same helper.
func Base58CheckEncode(version byte, payload []byte) string {
	full := append([]byte{version}, payload...)
	checksum := doubleSHA256(full)
	full = append(full, checksum[:4]...)
	return base58.Encode(full)
}

// Base58CheckDecode is the inverse of Base58CheckEncode.
func Base58CheckDecode(s string) (version byte, payload []byte, err error) {
	full, err := base58.Decode(s)
	if err != nil {
		return 0, nil, err
	}
	if len(full) < 5 {
		return 0, nil, fmt.Errorf("too short for a version byte and checksum")
	}
	body, checksum := full[:len(full)-4], full[len(full)-4:]
	want := doubleSHA256(body)
	if !bytes.Equal(checksum, want[:4]) {
		return 0, nil, fmt.Errorf("bad checksum")
	}
	return body[0], body[1:], nil
}

func doubleSHA256(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}
