package node

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/miner"
	"github.com/djkazic/plainchain/internal/types"
)

// miningPollInterval is how often the mining driver assembles a fresh
// candidate block, or polls an outstanding one for confirmation.
const miningPollInterval = 500 * time.Millisecond

// MineLoop drives blind merged mining until ctx is cancelled: assemble a
// candidate block from the mempool, attempt to BMM-commit it on the
// mainchain, and poll for confirmation, submitting the block locally once
// the mainchain has committed its hash.
func (n *Node) MineLoop(ctx context.Context, coinbaseAddress types.Address) {
	ticker := time.NewTicker(miningPollInterval)
	defer ticker.Stop()
	var hasPending bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := n.MineOnce(ctx, coinbaseAddress, hasPending)
			hasPending = pending
			if err != nil {
				n.logger.Warn("mining step failed", zap.Error(err))
			}
		}
	}
}

// MineOnce advances the mining state machine by a single step and returns
// whether a BMM attempt is now outstanding. When hasPending is true it only
// polls the miner for confirmation of the attempt already in flight;
// otherwise it assembles a fresh candidate out of the mempool and attempts
// to BMM-commit it.
func (n *Node) MineOnce(ctx context.Context, coinbaseAddress types.Address, hasPending bool) (bool, error) {
	if hasPending {
		header, body, err := n.miner.ConfirmBMM(ctx)
		if err != nil {
			return true, fmt.Errorf("confirm bmm: %w", err)
		}
		if header == nil {
			return true, nil
		}
		if err := n.SubmitBlock(ctx, *header, *body); err != nil {
			return false, fmt.Errorf("submit mined block: %w", err)
		}
		hash := header.Hash()
		n.logger.Info("mined block confirmed and submitted", zap.Binary("side_hash", hash[:]))
		return false, nil
	}

	transactions, fee, err := n.GetTransactions(miner.NumTransactions)
	if err != nil {
		return false, fmt.Errorf("get transactions: %w", err)
	}
	prevSideHash, err := n.GetBestHash()
	if err != nil {
		return false, fmt.Errorf("get best hash: %w", err)
	}
	prevMainHash, err := n.peg.GetMainchainTip(ctx)
	if err != nil {
		return false, fmt.Errorf("get mainchain tip: %w", err)
	}
	header, body := miner.AssembleBlock(transactions, fee, coinbaseAddress, prevSideHash, prevMainHash)
	if err := n.miner.AttemptBMM(ctx, miner.BMMBribe(fee), 0, header, body); err != nil {
		return false, fmt.Errorf("attempt bmm: %w", err)
	}
	return true, nil
}
