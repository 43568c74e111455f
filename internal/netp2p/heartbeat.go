package netp2p

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/wire"
)

const (
	heartbeatInterval  = time.Second
	quicMaxIdleTimeout = 30 * time.Second
	quicKeepAlive      = 15 * time.Second
)

// HeartBeat sends state to the peer over an unreliable datagram. Loss is
// acceptable: the next tick corrects it.
func (p *Peer) HeartBeat(state wire.PeerState) error {
	data, err := wire.EncodePeerState(state)
	if err != nil {
		return err
	}
	return p.conn.SendDatagram(data)
}

func (n *Net) heartbeatLoop(ctx context.Context, peer *Peer, localState func() wire.PeerState) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := peer.HeartBeat(localState()); err != nil {
				return
			}
		}
	}
}

func (n *Net) datagramLoop(ctx context.Context, peer *Peer) {
	for {
		data, err := peer.conn.ReceiveDatagram(ctx)
		if err != nil {
			return
		}
		state, err := wire.DecodePeerState(data)
		if err != nil {
			n.logger.Debug("dropping malformed heartbeat", zap.String("peer", peer.Addr()), zap.Error(err))
			continue
		}
		peer.mu.Lock()
		peer.state = state
		peer.mu.Unlock()
	}
}
