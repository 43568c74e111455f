// Package mainchain provides the minimal mainchain address and script
// plumbing needed to build a withdrawal bundle: parsing the unchecked
// destination strings stored in Content.Withdrawal and rendering their
// script_pubkey.
package mainchain

import (
	"fmt"

	"github.com/decred/dcrd/bech32"

	"github.com/djkazic/plainchain/internal/types"
)

const (
	legacyP2PKHVersion = 0x00
	legacyP2SHVersion  = 0x05
)

// AddressKind discriminates the script shapes this package can build.
type AddressKind uint8

const (
	AddressP2PKH AddressKind = iota
	AddressP2SH
	AddressSegwit
)

// Address is a parsed, validated mainchain destination.
type Address struct {
	Kind            AddressKind
	Hash            []byte // P2PKH/P2SH: 20-byte hash. Segwit: the witness program.
	WitnessVersion  byte   // Segwit only.
	raw             string
}

// String returns the address exactly as the depositor/withdrawer supplied
// it.
func (a Address) String() string { return a.raw }

// ParseAddress validates an unchecked mainchain destination string, trying
// legacy Base58Check first and falling back to bech32 segwit.
func ParseAddress(s string) (Address, error) {
	if version, hash, err := types.Base58CheckDecode(s); err == nil {
		switch version {
		case legacyP2PKHVersion:
			if len(hash) != 20 {
				return Address{}, fmt.Errorf("mainchain address %q: p2pkh hash wrong length %d", s, len(hash))
			}
			return Address{Kind: AddressP2PKH, Hash: hash, raw: s}, nil
		case legacyP2SHVersion:
			if len(hash) != 20 {
				return Address{}, fmt.Errorf("mainchain address %q: p2sh hash wrong length %d", s, len(hash))
			}
			return Address{Kind: AddressP2SH, Hash: hash, raw: s}, nil
		}
	}

	_, data, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("mainchain address %q: not base58check or bech32: %w", s, err)
	}
	if len(data) < 1 {
		return Address{}, fmt.Errorf("mainchain address %q: empty bech32 payload", s)
	}
	witnessVersion := data[0]
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("mainchain address %q: convert witness program: %w", s, err)
	}
	if len(program) < 2 || len(program) > 40 {
		return Address{}, fmt.Errorf("mainchain address %q: witness program wrong length %d", s, len(program))
	}
	return Address{Kind: AddressSegwit, Hash: program, WitnessVersion: witnessVersion, raw: s}, nil
}

// ScriptPubKey builds the output script that pays this address.
func (a Address) ScriptPubKey() []byte {
	switch a.Kind {
	case AddressP2PKH:
		return buildScript([]byte{opDUP}, []byte{opHASH160}, opPushBytes(a.Hash), []byte{opEQUALVERIFY}, []byte{opCHECKSIG})
	case AddressP2SH:
		return buildScript([]byte{opHASH160}, opPushBytes(a.Hash), []byte{opEQUAL})
	case AddressSegwit:
		return buildScript(segwitVersionOp(a.WitnessVersion), opPushBytes(a.Hash))
	default:
		return nil
	}
}
