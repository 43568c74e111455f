package peg

import (
	"encoding/binary"
	"fmt"

	"github.com/djkazic/plainchain/internal/types"
	"github.com/djkazic/plainchain/pkg/util"
)

// parseMainTx reads just enough of a raw mainchain transaction - version,
// inputs, outputs - to recover output values for deposit accounting. It
// tolerates an optional BIP144 segwit marker/flag and witness stacks,
// skipping over them, since it only needs output values.
func parseMainTx(raw []byte) (types.MainTx, error) {
	r := &reader{data: raw}

	version, err := r.readUint32LE()
	if err != nil {
		return types.MainTx{}, err
	}

	segwit := false
	if len(r.data) >= r.pos+2 && r.data[r.pos] == 0x00 && r.data[r.pos+1] == 0x01 {
		segwit = true
		r.pos += 2
	}

	numInputs, err := r.readVarInt()
	if err != nil {
		return types.MainTx{}, err
	}
	inputs := make([]types.MainTxIn, 0, numInputs)
	for i := uint64(0); i < numInputs; i++ {
		var in types.MainTxIn
		prevTxid, err := r.readBytes(32)
		if err != nil {
			return types.MainTx{}, err
		}
		copy(in.PrevTxid[:], prevTxid)
		in.PrevVout, err = r.readUint32LE()
		if err != nil {
			return types.MainTx{}, err
		}
		scriptLen, err := r.readVarInt()
		if err != nil {
			return types.MainTx{}, err
		}
		in.ScriptSig, err = r.readBytes(int(scriptLen))
		if err != nil {
			return types.MainTx{}, err
		}
		in.Sequence, err = r.readUint32LE()
		if err != nil {
			return types.MainTx{}, err
		}
		inputs = append(inputs, in)
	}

	numOutputs, err := r.readVarInt()
	if err != nil {
		return types.MainTx{}, err
	}
	outputs := make([]types.MainTxOut, 0, numOutputs)
	for i := uint64(0); i < numOutputs; i++ {
		var out types.MainTxOut
		value, err := r.readUint64LE()
		if err != nil {
			return types.MainTx{}, err
		}
		out.Value = int64(value)
		scriptLen, err := r.readVarInt()
		if err != nil {
			return types.MainTx{}, err
		}
		out.PkScript, err = r.readBytes(int(scriptLen))
		if err != nil {
			return types.MainTx{}, err
		}
		outputs = append(outputs, out)
	}

	if segwit {
		for i := uint64(0); i < numInputs; i++ {
			numItems, err := r.readVarInt()
			if err != nil {
				return types.MainTx{}, err
			}
			for j := uint64(0); j < numItems; j++ {
				itemLen, err := r.readVarInt()
				if err != nil {
					return types.MainTx{}, err
				}
				if _, err := r.readBytes(int(itemLen)); err != nil {
					return types.MainTx{}, err
				}
			}
		}
	}

	lockTime, err := r.readUint32LE()
	if err != nil {
		return types.MainTx{}, err
	}

	return types.MainTx{
		Version:  int32(version),
		LockTime: lockTime,
		Inputs:   inputs,
		Outputs:  outputs,
	}, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("raw tx: truncated reading %d bytes at offset %d", n, r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readUint32LE() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readUint64LE() (uint64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) readVarInt() (uint64, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("raw tx: truncated reading varint at offset %d", r.pos)
	}
	v, n, err := util.ReadVarInt(r.data[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}
