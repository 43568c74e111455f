package miner

import "github.com/djkazic/plainchain/internal/types"

// NumTransactions bounds how many mempool transactions a single block may
// include.
const NumTransactions = 1000

// AssembleBlock builds the header and body for a candidate block out of a
// batch of mempool transactions and the total fee they pay. A zero fee
// produces an empty coinbase rather than a zero-value output; otherwise the
// whole fee pays coinbaseAddress.
func AssembleBlock(transactions []types.AuthorizedTransaction, fee uint64, coinbaseAddress types.Address, prevSideHash types.BlockHash, prevMainHash types.MainBlockHash) (types.Header, types.Body) {
	var coinbase []types.Output
	if fee > 0 {
		coinbase = []types.Output{{Address: coinbaseAddress, Content: types.ValueContent(fee)}}
	}
	body := types.NewBody(transactions, coinbase)
	header := types.Header{
		MerkleRoot:   body.MerkleRoot(),
		PrevSideHash: prevSideHash,
		PrevMainHash: prevMainHash,
	}
	return header, body
}

// BMMBribe picks the mainchain fee to pay for committing a candidate
// block: the block's own fee total when nonzero, otherwise
// EmptyBlockBMMBribe so the chain keeps advancing during quiet periods.
func BMMBribe(fee uint64) uint64 {
	if fee > 0 {
		return fee
	}
	return EmptyBlockBMMBribe
}
