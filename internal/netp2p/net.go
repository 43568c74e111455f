// Package netp2p is the QUIC transport: peer connections, a fixed-cadence
// heartbeat carrying chain height over an unreliable datagram, and
// request/response exchanges over bidirectional streams.
package netp2p

import (
	"context"
	"fmt"
	"sync"

	"github.com/quic-go/quic-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/djkazic/plainchain/internal/wire"
)

// Handler answers an incoming Request from a connected peer.
type Handler func(ctx context.Context, req wire.Request) wire.Response

// Net owns the listening and dialing endpoints and the connected peer
// table.
type Net struct {
	listener   *quic.Listener
	logger     *zap.Logger
	handler    Handler
	localState func() wire.PeerState

	mu    sync.RWMutex
	peers map[string]*Peer

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// Peer is a connected remote node.
type Peer struct {
	conn quic.Connection

	mu    sync.RWMutex
	state wire.PeerState
}

// State returns the peer's last reported heartbeat state.
func (p *Peer) State() wire.PeerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Addr returns the peer's remote network address.
func (p *Peer) Addr() string {
	return p.conn.RemoteAddr().String()
}

// New binds a QUIC listener at bindAddr and returns a Net ready to Accept
// and Connect. handler answers every inbound bidirectional-stream request;
// localState reports this node's current heartbeat payload.
func New(bindAddr string, logger *zap.Logger, handler Handler, localState func() wire.PeerState) (*Net, error) {
	tlsConf, err := serverTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("server tls config: %w", err)
	}
	listener, err := quic.ListenAddr(bindAddr, tlsConf, quicServerConfig())
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", bindAddr, err)
	}
	return &Net{
		listener:   listener,
		logger:     logger,
		handler:    handler,
		localState: localState,
		peers:      make(map[string]*Peer),
		limiters:   make(map[string]*rate.Limiter),
	}, nil
}

// Addr returns the listener's bound local address.
func (n *Net) Addr() string {
	return n.listener.Addr().String()
}

// Close shuts down the listener and every connection it accepted.
func (n *Net) Close() error {
	n.mu.Lock()
	for _, p := range n.peers {
		p.conn.CloseWithError(0, "shutting down")
	}
	n.mu.Unlock()
	return n.listener.Close()
}

// Serve accepts incoming connections until ctx is cancelled.
func (n *Net) Serve(ctx context.Context) error {
	for {
		conn, err := n.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		peer := n.addPeer(conn)
		go n.servePeer(ctx, peer)
	}
}

// Connect dials addr and registers the resulting connection as a peer.
func (n *Net) Connect(ctx context.Context, addr string) (*Peer, error) {
	n.mu.RLock()
	for _, p := range n.peers {
		if p.Addr() == addr {
			n.mu.RUnlock()
			return nil, fmt.Errorf("already connected to %s", addr)
		}
	}
	n.mu.RUnlock()

	conn, err := quic.DialAddr(ctx, addr, clientTLSConfig(), quicClientConfig())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	peer := n.addPeer(conn)
	go n.servePeer(ctx, peer)
	return peer, nil
}

// Disconnect closes and forgets the connection to addr.
func (n *Net) Disconnect(addr string) {
	n.mu.Lock()
	peer, ok := n.peers[addr]
	if ok {
		delete(n.peers, addr)
	}
	n.mu.Unlock()
	if ok {
		peer.conn.CloseWithError(0, "disconnected")
	}
}

// Peers returns a snapshot of currently connected peers.
func (n *Net) Peers() []*Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	return peers
}

func (n *Net) addPeer(conn quic.Connection) *Peer {
	peer := &Peer{conn: conn}
	n.mu.Lock()
	n.peers[peer.Addr()] = peer
	n.mu.Unlock()
	return peer
}

func (n *Net) servePeer(ctx context.Context, peer *Peer) {
	go n.heartbeatLoop(ctx, peer, n.localState)
	go n.datagramLoop(ctx, peer)
	for {
		stream, err := peer.conn.AcceptStream(ctx)
		if err != nil {
			n.mu.Lock()
			delete(n.peers, peer.Addr())
			n.mu.Unlock()
			return
		}
		go n.serveStream(stream, peer)
	}
}

func (n *Net) limiterFor(addr string) *rate.Limiter {
	n.limitersMu.Lock()
	defer n.limitersMu.Unlock()
	lim, ok := n.limiters[addr]
	if ok {
		return lim
	}
	if len(n.limiters) >= 500 {
		for a := range n.limiters {
			delete(n.limiters, a)
			break
		}
	}
	lim = rate.NewLimiter(20, 40)
	n.limiters[addr] = lim
	return lim
}
