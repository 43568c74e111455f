package types

import (
	"encoding/binary"

	"github.com/djkazic/plainchain/pkg/util"
)

// MainTxIn is a minimal mainchain transaction input: enough to build and
// broadcast a withdrawal bundle's dummy sweep input.
type MainTxIn struct {
	PrevTxid  MainTxid `cbor:"1,keyasint"`
	PrevVout  uint32   `cbor:"2,keyasint"`
	ScriptSig []byte   `cbor:"3,keyasint"`
	Sequence  uint32   `cbor:"4,keyasint"`
}

// MainTxOut is a minimal mainchain transaction output.
type MainTxOut struct {
	Value    int64  `cbor:"1,keyasint"`
	PkScript []byte `cbor:"2,keyasint"`
}

// MainTx is a minimal legacy (non-segwit) mainchain transaction, sufficient
// to construct, weigh, and hex-broadcast a withdrawal bundle. It is not a
// general-purpose Bitcoin transaction codec.
type MainTx struct {
	Version  int32       `cbor:"1,keyasint"`
	LockTime uint32      `cbor:"2,keyasint"`
	Inputs   []MainTxIn  `cbor:"3,keyasint"`
	Outputs  []MainTxOut `cbor:"4,keyasint"`
}

// Serialize renders the transaction in legacy Bitcoin wire format.
func (t MainTx) Serialize() []byte {
	var buf []byte
	var le4 [4]byte
	binary.LittleEndian.PutUint32(le4[:], uint32(t.Version))
	buf = append(buf, le4[:]...)

	buf = append(buf, util.WriteVarInt(uint64(len(t.Inputs)))...)
	for _, in := range t.Inputs {
		buf = append(buf, in.PrevTxid[:]...)
		binary.LittleEndian.PutUint32(le4[:], in.PrevVout)
		buf = append(buf, le4[:]...)
		buf = append(buf, util.WriteVarInt(uint64(len(in.ScriptSig)))...)
		buf = append(buf, in.ScriptSig...)
		seq := in.Sequence
		if seq == 0 {
			seq = 0xffffffff
		}
		binary.LittleEndian.PutUint32(le4[:], seq)
		buf = append(buf, le4[:]...)
	}

	buf = append(buf, util.WriteVarInt(uint64(len(t.Outputs)))...)
	for _, out := range t.Outputs {
		var le8 [8]byte
		binary.LittleEndian.PutUint64(le8[:], uint64(out.Value))
		buf = append(buf, le8[:]...)
		buf = append(buf, util.WriteVarInt(uint64(len(out.PkScript)))...)
		buf = append(buf, out.PkScript...)
	}

	binary.LittleEndian.PutUint32(le4[:], t.LockTime)
	buf = append(buf, le4[:]...)
	return buf
}

// Txid hashes the serialized transaction with double-SHA256, matching
// mainchain convention.
func (t MainTx) Txid() MainTxid {
	return MainTxid(util.DoubleSHA256(t.Serialize()))
}

// Weight approximates BIP141 weight for a transaction with no witness data:
// serialized size counted four times.
func (t MainTx) Weight() uint64 {
	return uint64(len(t.Serialize())) * 4
}
