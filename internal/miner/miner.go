// Package miner assembles candidate blocks and drives them through the
// blind merged mining handshake with the mainchain: attempt, then confirm
// once the mainchain has committed the block's hash.
package miner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/metrics"
	"github.com/djkazic/plainchain/internal/peg"
	"github.com/djkazic/plainchain/internal/types"
)

// EmptyBlockBMMBribe is the mainchain fee, in satoshis, paid to commit an
// empty block when the mempool has nothing worth mining yet. Keeping it
// nonzero means the chain still advances (and BMM-confirms deposits and
// bundle settlements) during quiet periods.
const EmptyBlockBMMBribe = 1000

// Miner holds at most one attempted-but-unconfirmed block at a time: a
// second AttemptBMM before the first is confirmed or abandoned overwrites
// it, matching the single-slot model the mainchain handshake assumes.
type Miner struct {
	client          *peg.Client
	logger          *zap.Logger
	sidechainNumber uint8

	mu      sync.Mutex
	pending *pendingBlock
}

type pendingBlock struct {
	header types.Header
	body   types.Body
}

// New builds a Miner bound to a mainchain RPC client.
func New(client *peg.Client, sidechainNumber uint8, logger *zap.Logger) *Miner {
	return &Miner{client: client, sidechainNumber: sidechainNumber, logger: logger}
}

// AttemptBMM broadcasts a critical-data transaction committing header's
// hash to the mainchain at height, then holds header and body pending
// confirmation. header.MerkleRoot must already equal body.MerkleRoot().
func (m *Miner) AttemptBMM(ctx context.Context, amount uint64, height uint32, header types.Header, body types.Body) error {
	if header.MerkleRoot != body.MerkleRoot() {
		return fmt.Errorf("attempt bmm: header merkle root does not match body")
	}
	if err := m.client.AttemptBMM(ctx, amount, height, header); err != nil {
		metrics.BmmAttempts.WithLabelValues("broadcast_failed").Inc()
		return fmt.Errorf("attempt bmm: %w", err)
	}
	m.mu.Lock()
	m.pending = &pendingBlock{header: header, body: body}
	m.mu.Unlock()
	metrics.BmmAttempts.WithLabelValues("broadcast").Inc()
	m.logger.Info("bmm attempt broadcast",
		zap.Uint32("main_height", height), zap.Binary("side_hash", sideHashBytes(header)))
	return nil
}

// ConfirmBMM checks whether the pending block's commitment has landed on
// the mainchain. It returns (nil, nil, nil) when no block is pending or
// the commitment has not yet confirmed; a failed VerifyBMM call is logged
// and also yields (nil, nil, nil), leaving the block pending.
func (m *Miner) ConfirmBMM(ctx context.Context) (*types.Header, *types.Body, error) {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()
	if pending == nil {
		return nil, nil, nil
	}
	if err := m.client.VerifyBMM(ctx, pending.header); err != nil {
		if !errors.Is(err, peg.ErrNoNextBlock) {
			m.logger.Debug("verify bmm failed", zap.Error(err))
		}
		return nil, nil, nil
	}
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
	metrics.BmmAttempts.WithLabelValues("confirmed").Inc()
	return &pending.header, &pending.body, nil
}

func sideHashBytes(header types.Header) []byte {
	hash := header.Hash()
	return hash[:]
}
