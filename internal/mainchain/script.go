package mainchain

import "github.com/djkazic/plainchain/pkg/util"

// Opcodes used to build the handful of script shapes this package needs:
// P2PKH, P2SH, segwit v0/v1+, and OP_RETURN data carriers.
const (
	opFALSE       = 0x00
	opPUSHDATA1   = 0x4c
	opRETURN      = 0x6a
	op1Negate     = 0x4f
	op1           = 0x51
	op16          = 0x60
	opDUP         = 0x76
	opEQUAL       = 0x87
	opEQUALVERIFY = 0x88
	opHASH160     = 0xa9
	opCHECKSIG    = 0xac
)

// opPushBytes renders the minimal push opcode for data followed by data
// itself, using the same OP_PUSHDATA length encoding Bitcoin script uses.
func opPushBytes(data []byte) []byte {
	return append(util.WriteScriptLen(len(data)), data...)
}

// segwitVersionOp returns the single-byte version push for a segwit
// witness program: OP_0 for version 0, OP_1..OP_16 for versions 1-16.
func segwitVersionOp(version byte) []byte {
	if version == 0 {
		return []byte{opFALSE}
	}
	return []byte{op1 + version - 1}
}

// buildScript concatenates opcodes and pushdata fragments into one script.
func buildScript(parts ...[]byte) []byte {
	var script []byte
	for _, p := range parts {
		script = append(script, p...)
	}
	return script
}

// OpReturnScript builds a standard unspendable data-carrier output script:
// OP_RETURN followed by a single push of data.
func OpReturnScript(data []byte) []byte {
	return buildScript([]byte{opRETURN}, opPushBytes(data))
}

// OpFalseScript builds the dummy always-succeeding scriptSig used to spend
// a withdrawal bundle's sweep input.
func OpFalseScript() []byte {
	return []byte{opFALSE}
}
