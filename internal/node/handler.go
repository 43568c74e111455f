package node

import (
	"context"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/types"
	"github.com/djkazic/plainchain/internal/wire"
)

// handleRequest answers a peer's GetBlock or PushTransaction request.
func (n *Node) handleRequest(ctx context.Context, req wire.Request) wire.Response {
	switch req.Kind {
	case wire.RequestGetBlock:
		header, body, err := n.getBlockForSync(req.Height)
		if err != nil || header == nil || body == nil {
			return wire.NoBlock()
		}
		return wire.Block(*header, *body)

	case wire.RequestPushTransaction:
		if err := n.admitAndRelay(ctx, req.Transaction); err != nil {
			n.logger.Debug("rejected pushed transaction", zap.Error(err))
			return wire.TransactionRejected()
		}
		return wire.TransactionAccepted()

	default:
		return wire.NoBlock()
	}
}

func (n *Node) getBlockForSync(height uint32) (*types.Header, *types.Body, error) {
	var header *types.Header
	var body *types.Body
	err := n.store.View(func(tx *bolt.Tx) error {
		h, err := n.archive.GetHeader(tx, height)
		if err != nil {
			return err
		}
		b, err := n.archive.GetBody(tx, height)
		if err != nil {
			return err
		}
		header, body = h, b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return header, body, nil
}

// admitAndRelay validates a transaction pushed by a peer, admits it to the
// mempool, and relays it to every connected peer. The handler is not told
// which peer pushed the transaction, so that peer is relayed to as well.
func (n *Node) admitAndRelay(ctx context.Context, at types.AuthorizedTransaction) error {
	err := n.store.Update(func(tx *bolt.Tx) error {
		if _, err := n.validateTransaction(tx, at); err != nil {
			return err
		}
		return n.mempool.Put(tx, at)
	})
	if err != nil {
		return err
	}
	for _, p := range n.net.Peers() {
		_, _ = p.Request(ctx, wire.PushTransaction(at))
	}
	return nil
}
