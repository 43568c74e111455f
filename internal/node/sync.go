package node

import (
	"context"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/metrics"
	"github.com/djkazic/plainchain/internal/wire"
)

// syncLoop periodically asks every connected peer whether its heartbeat
// reports a height ahead of ours, and if so, pulls and submits the next
// block. It only ever fetches one block past the local tip per peer per
// tick, so a peer many blocks ahead is caught up incrementally.
func (n *Node) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(syncPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.pollPeers(ctx)
		}
	}
}

func (n *Node) pollPeers(ctx context.Context) {
	height, err := n.GetHeight()
	if err != nil {
		n.logger.Warn("read height failed", zap.Error(err))
		return
	}
	metrics.ChainHeight.Set(float64(height))
	peers := n.net.Peers()
	metrics.PeersConnected.Set(float64(len(peers)))
	_ = n.store.View(func(tx *bolt.Tx) error {
		metrics.UtxoCount.Set(float64(n.state.UtxoCount(tx)))
		metrics.MempoolSize.Set(float64(n.mempool.Count(tx)))
		return nil
	})
	for _, p := range peers {
		state := p.State()
		if state.BlockHeight <= height {
			continue
		}
		resp, err := p.Request(ctx, wire.GetBlock(height+1))
		if err != nil {
			n.logger.Warn("sync request failed", zap.String("peer", p.Addr()), zap.Error(err))
			continue
		}
		if resp.Kind != wire.ResponseBlock {
			continue
		}
		if err := n.SubmitBlock(ctx, resp.Header, resp.Body); err != nil {
			n.logger.Warn("submit synced block failed", zap.String("peer", p.Addr()), zap.Error(err))
			continue
		}
		n.logger.Info("synced block", zap.Uint32("height", height+1), zap.String("peer", p.Addr()))
	}
}
