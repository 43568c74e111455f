package netp2p

import (
	"context"
	"fmt"
	"io"

	"github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/wire"
)

// Request opens a new bidirectional stream to the peer, sends req, and
// waits for a Response.
func (p *Peer) Request(ctx context.Context, req wire.Request) (wire.Response, error) {
	stream, err := p.conn.OpenStreamSync(ctx)
	if err != nil {
		return wire.Response{}, fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	data, err := wire.EncodeRequest(req)
	if err != nil {
		return wire.Response{}, err
	}
	if _, err := stream.Write(data); err != nil {
		return wire.Response{}, fmt.Errorf("write request: %w", err)
	}
	if err := stream.Close(); err != nil {
		return wire.Response{}, fmt.Errorf("close stream: %w", err)
	}

	respData, err := io.ReadAll(io.LimitReader(stream, wire.ReadLimit))
	if err != nil {
		return wire.Response{}, fmt.Errorf("read response: %w", err)
	}
	return wire.DecodeResponse(respData)
}

func (n *Net) serveStream(stream quic.Stream, peer *Peer) {
	defer stream.Close()

	if !n.limiterFor(peer.Addr()).Allow() {
		n.logger.Warn("peer rate limited", zap.String("peer", peer.Addr()))
		return
	}

	reqData, err := io.ReadAll(io.LimitReader(stream, wire.ReadLimit))
	if err != nil {
		n.logger.Debug("read request failed", zap.String("peer", peer.Addr()), zap.Error(err))
		return
	}
	req, err := wire.DecodeRequest(reqData)
	if err != nil {
		n.logger.Debug("invalid request", zap.String("peer", peer.Addr()), zap.Error(err))
		return
	}

	resp := n.handler(context.Background(), req)
	respData, err := wire.EncodeResponse(resp)
	if err != nil {
		n.logger.Error("encode response failed", zap.Error(err))
		return
	}
	if _, err := stream.Write(respData); err != nil {
		n.logger.Debug("write response failed", zap.String("peer", peer.Addr()), zap.Error(err))
	}
}
