package types

import "fmt"

// OutPointKind discriminates the three ways a UTXO can come into existence.
type OutPointKind uint8

const (
	// OutPointRegular is produced by a sidechain transaction output.
	OutPointRegular OutPointKind = iota
	// OutPointCoinbase is produced by a block's coinbase.
	OutPointCoinbase
	// OutPointDeposit is produced by a mainchain deposit.
	OutPointDeposit
)

// OutPoint uniquely identifies a UTXO across the lifetime of the chain. It is
// a tagged union of Regular{txid,vout}, Coinbase{merkle_root,vout} and
// Deposit(mainchain_outpoint); Txid and Vout double as the mainchain
// (txid, vout) pair for the Deposit variant. The struct is comparable and
// usable directly as a Go map key.
type OutPoint struct {
	Kind       OutPointKind `cbor:"1,keyasint"`
	Txid       Txid         `cbor:"2,keyasint"`
	Vout       uint32       `cbor:"3,keyasint"`
	MerkleRoot MerkleRoot   `cbor:"4,keyasint"`
}

// RegularOutPoint builds an OutPoint produced by a sidechain transaction.
func RegularOutPoint(txid Txid, vout uint32) OutPoint {
	return OutPoint{Kind: OutPointRegular, Txid: txid, Vout: vout}
}

// CoinbaseOutPoint builds an OutPoint produced by a block's coinbase.
func CoinbaseOutPoint(merkleRoot MerkleRoot, vout uint32) OutPoint {
	return OutPoint{Kind: OutPointCoinbase, MerkleRoot: merkleRoot, Vout: vout}
}

// DepositOutPoint builds an OutPoint produced by a mainchain deposit. txid
// and vout identify the mainchain UTXO that was burned.
func DepositOutPoint(mainTxid MainTxid, vout uint32) OutPoint {
	return OutPoint{Kind: OutPointDeposit, Txid: Txid(mainTxid), Vout: vout}
}

func (o OutPoint) IsRegular() bool  { return o.Kind == OutPointRegular }
func (o OutPoint) IsCoinbase() bool { return o.Kind == OutPointCoinbase }
func (o OutPoint) IsDeposit() bool  { return o.Kind == OutPointDeposit }

func (o OutPoint) String() string {
	switch o.Kind {
	case OutPointRegular:
		return fmt.Sprintf("regular %x %d", o.Txid, o.Vout)
	case OutPointCoinbase:
		return fmt.Sprintf("coinbase %x %d", o.MerkleRoot, o.Vout)
	case OutPointDeposit:
		return fmt.Sprintf("deposit %x %d", o.Txid, o.Vout)
	default:
		return fmt.Sprintf("outpoint(kind=%d)", o.Kind)
	}
}

// Bytes renders a fixed-width (69-byte) big-endian encoding suitable as a
// Store key: kind(1) || txid(32) || vout(4, BE) || merkle_root(32).
func (o OutPoint) Bytes() []byte {
	b := make([]byte, 69)
	b[0] = byte(o.Kind)
	copy(b[1:33], o.Txid[:])
	b[33] = byte(o.Vout >> 24)
	b[34] = byte(o.Vout >> 16)
	b[35] = byte(o.Vout >> 8)
	b[36] = byte(o.Vout)
	copy(b[37:69], o.MerkleRoot[:])
	return b
}

// OutPointFromBytes parses the encoding produced by OutPoint.Bytes.
func OutPointFromBytes(b []byte) (OutPoint, error) {
	if len(b) != 69 {
		return OutPoint{}, fmt.Errorf("outpoint: wrong length %d, want 69", len(b))
	}
	var o OutPoint
	o.Kind = OutPointKind(b[0])
	copy(o.Txid[:], b[1:33])
	o.Vout = uint32(b[33])<<24 | uint32(b[34])<<16 | uint32(b[35])<<8 | uint32(b[36])
	copy(o.MerkleRoot[:], b[37:69])
	return o, nil
}
