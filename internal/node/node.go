// Package node wires the store, archive, state, mempool, peg client and
// transport together into a running sidechain node: block submission,
// transaction relay, catch-up sync and the wallet-facing read API.
package node

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/archive"
	"github.com/djkazic/plainchain/internal/authorization"
	"github.com/djkazic/plainchain/internal/mempool"
	"github.com/djkazic/plainchain/internal/metrics"
	"github.com/djkazic/plainchain/internal/miner"
	"github.com/djkazic/plainchain/internal/netp2p"
	"github.com/djkazic/plainchain/internal/peg"
	"github.com/djkazic/plainchain/internal/state"
	"github.com/djkazic/plainchain/internal/store"
	"github.com/djkazic/plainchain/internal/types"
	"github.com/djkazic/plainchain/internal/wire"
)

// syncPollInterval is how often the catch-up loop asks every connected
// peer whether it is ahead.
const syncPollInterval = time.Second

// Node is the sidechain node: every component sharing one bbolt
// environment, plus the mainchain RPC client and the QUIC transport.
type Node struct {
	store   *store.Store
	archive *archive.Archive
	state   *state.State
	mempool *mempool.MemPool
	peg     *peg.Client
	miner   *miner.Miner
	net     *netp2p.Net
	logger  *zap.Logger

	coinbaseAddress *types.Address
}

// Config bundles Node's construction-time settings.
type Config struct {
	DataDir         string
	BindAddr        string
	MainchainURL    string
	MainchainUser   string
	MainchainPass   string
	SidechainNumber uint8

	// CoinbaseAddress, when non-nil, enables the mining driver loop:
	// Run launches it paying block fees to this address.
	CoinbaseAddress *types.Address
}

// New opens the store at cfg.DataDir, declares every component's buckets,
// and binds the QUIC listener at cfg.BindAddr.
func New(cfg Config, logger *zap.Logger) (*Node, error) {
	st, err := store.Open(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	arc, err := archive.New(st.DB(), logger)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	stt, err := state.New(st.DB(), logger)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	mp, err := mempool.New(st.DB(), logger)
	if err != nil {
		return nil, fmt.Errorf("open mempool: %w", err)
	}
	pegClient := peg.NewClient(cfg.MainchainURL, cfg.MainchainUser, cfg.MainchainPass, cfg.SidechainNumber)
	mnr := miner.New(pegClient, cfg.SidechainNumber, logger)

	n := &Node{
		store: st, archive: arc, state: stt, mempool: mp, peg: pegClient, miner: mnr, logger: logger,
		coinbaseAddress: cfg.CoinbaseAddress,
	}

	net, err := netp2p.New(cfg.BindAddr, logger, n.handleRequest, n.localPeerState)
	if err != nil {
		return nil, fmt.Errorf("open net: %w", err)
	}
	n.net = net
	return n, nil
}

// Close releases the underlying store and transport.
func (n *Node) Close() error {
	if err := n.net.Close(); err != nil {
		n.logger.Warn("close net", zap.Error(err))
	}
	return n.store.Close()
}

// Addr returns the node's bound listen address.
func (n *Node) Addr() string { return n.net.Addr() }

// Connect dials addr and begins tracking it as a peer.
func (n *Node) Connect(ctx context.Context, addr string) error {
	_, err := n.net.Connect(ctx, addr)
	return err
}

// Run starts accepting connections and the catch-up sync loop. It blocks
// until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- n.net.Serve(ctx) }()
	go n.syncLoop(ctx)
	if n.coinbaseAddress != nil {
		go n.MineLoop(ctx, *n.coinbaseAddress)
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (n *Node) localPeerState() wire.PeerState {
	var height uint32
	_ = n.store.View(func(tx *bolt.Tx) error {
		h, err := n.archive.Height(tx)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	return wire.PeerState{BlockHeight: height}
}

// GetHeight returns the archive's current height.
func (n *Node) GetHeight() (uint32, error) {
	var height uint32
	err := n.store.View(func(tx *bolt.Tx) error {
		h, err := n.archive.Height(tx)
		height = h
		return err
	})
	return height, err
}

// GetBestHash returns the archive's current best hash.
func (n *Node) GetBestHash() (types.BlockHash, error) {
	var hash types.BlockHash
	err := n.store.View(func(tx *bolt.Tx) error {
		h, err := n.archive.BestHash(tx)
		hash = h
		return err
	})
	return hash, err
}

// GetHeader returns the header at height, or nil if none exists.
func (n *Node) GetHeader(height uint32) (*types.Header, error) {
	var header *types.Header
	err := n.store.View(func(tx *bolt.Tx) error {
		h, err := n.archive.GetHeader(tx, height)
		header = h
		return err
	})
	return header, err
}

// GetBody returns the body at height, or nil if none exists.
func (n *Node) GetBody(height uint32) (*types.Body, error) {
	var body *types.Body
	err := n.store.View(func(tx *bolt.Tx) error {
		b, err := n.archive.GetBody(tx, height)
		body = b
		return err
	})
	return body, err
}

// GetUTXOsByAddresses returns the subset of the UTXO set paying any of the
// given addresses.
func (n *Node) GetUTXOsByAddresses(addresses map[types.Address]struct{}) (map[types.OutPoint]types.Output, error) {
	var utxos map[types.OutPoint]types.Output
	err := n.store.View(func(tx *bolt.Tx) error {
		u, err := n.state.GetUtxosByAddresses(tx, addresses)
		utxos = u
		return err
	})
	return utxos, err
}

// GetSpentOutpoints returns the subset of outpoints that no longer name a
// utxo in the current set.
func (n *Node) GetSpentOutpoints(outpoints []types.OutPoint) ([]types.OutPoint, error) {
	var spent []types.OutPoint
	err := n.store.View(func(tx *bolt.Tx) error {
		utxos, err := n.state.GetUtxos(tx)
		if err != nil {
			return err
		}
		for _, o := range outpoints {
			if _, ok := utxos[o]; !ok {
				spent = append(spent, o)
			}
		}
		return nil
	})
	return spent, err
}

// GetPendingWithdrawalBundle returns the currently pending bundle, if any.
func (n *Node) GetPendingWithdrawalBundle() (*types.WithdrawalBundle, error) {
	var bundle *types.WithdrawalBundle
	err := n.store.View(func(tx *bolt.Tx) error {
		b, err := n.state.GetPendingWithdrawalBundle(tx)
		bundle = b
		return err
	})
	return bundle, err
}

// GetAllTransactions returns every transaction currently in the mempool.
func (n *Node) GetAllTransactions() ([]types.AuthorizedTransaction, error) {
	var txs []types.AuthorizedTransaction
	err := n.store.View(func(tx *bolt.Tx) error {
		t, err := n.mempool.TakeAll(tx)
		txs = t
		return err
	})
	return txs, err
}

// validateTransaction fills transaction, checks every authorization's
// derived address against the utxo it spends, verifies signatures, and
// returns the fee it pays.
func (n *Node) validateTransaction(tx *bolt.Tx, at types.AuthorizedTransaction) (uint64, error) {
	filled, err := n.state.FillTransaction(tx, at.Transaction)
	if err != nil {
		return 0, err
	}
	if len(at.Authorizations) != len(filled.SpentUtxos) {
		return 0, fmt.Errorf("%d authorizations for %d spent utxos", len(at.Authorizations), len(filled.SpentUtxos))
	}
	for i, auth := range at.Authorizations {
		if auth.GetAddress() != filled.SpentUtxos[i].Address {
			return 0, state.ErrWrongPubKeyForAddress
		}
	}
	if err := authorization.VerifyTransaction(at); err != nil {
		return 0, state.ErrAuthorization
	}
	return state.ValidateFilledTransaction(filled)
}

// SubmitTransaction validates an authorized transaction, admits it to the
// mempool, and relays it to every connected peer.
func (n *Node) SubmitTransaction(ctx context.Context, at types.AuthorizedTransaction) error {
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
		if _, err := p.Request(ctx, wire.PushTransaction(at)); err != nil {
			n.logger.Warn("relay transaction failed", zap.String("peer", p.Addr()), zap.Error(err))
		}
	}
	return nil
}

// GetTransactions takes up to number transactions out of the mempool,
// dropping any that double-spend within the batch or no longer validate,
// and returns the survivors plus their total fee.
func (n *Node) GetTransactions(number int) ([]types.AuthorizedTransaction, uint64, error) {
	var result []types.AuthorizedTransaction
	var fee uint64
	err := n.store.Update(func(tx *bolt.Tx) error {
		candidates, err := n.mempool.Take(tx, number)
		if err != nil {
			return err
		}
		spent := make(map[types.OutPoint]struct{})
		for _, at := range candidates {
			txid := at.Transaction.Txid()
			conflict := false
			for _, input := range at.Transaction.Inputs {
				if _, ok := spent[input]; ok {
					conflict = true
					break
				}
			}
			if conflict {
				_ = n.mempool.Delete(tx, txid)
				continue
			}
			txFee, err := n.validateTransaction(tx, at)
			if err != nil {
				_ = n.mempool.Delete(tx, txid)
				continue
			}
			for _, input := range at.Transaction.Inputs {
				spent[input] = struct{}{}
			}
			fee += txFee
			result = append(result, at)
		}
		return nil
	})
	return result, fee, err
}

// SubmitBlock validates and connects a newly mined or received block:
// peg data is fetched outside the write transaction (it requires a
// mainchain RPC round trip), then the body is validated, connected, peg
// data is folded in, the header and body are appended, and every included
// transaction is dropped from the mempool, all inside one commit. Any
// bundle that newly became pending is broadcast to the mainchain after the
// commit succeeds.
func (n *Node) SubmitBlock(ctx context.Context, header types.Header, body types.Body) error {
	var lastDepositBlockHash *types.MainBlockHash
	if err := n.store.View(func(tx *bolt.Tx) error {
		h, err := n.state.GetLastDepositBlockHash(tx)
		lastDepositBlockHash = h
		return err
	}); err != nil {
		return fmt.Errorf("read last deposit block hash: %w", err)
	}

	pegData, err := n.peg.GetTwoWayPegData(ctx, header.PrevMainHash, lastDepositBlockHash)
	if err != nil {
		return fmt.Errorf("fetch peg data: %w", err)
	}

	var bundle *types.WithdrawalBundle
	err = n.store.Update(func(tx *bolt.Tx) error {
		if _, err := n.state.ValidateBody(tx, body); err != nil {
			metrics.BlocksRejected.WithLabelValues("invalid_body").Inc()
			return fmt.Errorf("validate body: %w", err)
		}
		if err := n.state.ConnectBody(tx, body); err != nil {
			metrics.BlocksRejected.WithLabelValues("connect_body").Inc()
			return fmt.Errorf("connect body: %w", err)
		}
		height, err := n.archive.Height(tx)
		if err != nil {
			return err
		}
		metrics.DepositsIngested.Add(float64(len(pegData.Deposits)))
		if err := n.state.ConnectTwoWayPegData(tx, pegData, height); err != nil {
			metrics.BlocksRejected.WithLabelValues("peg_data").Inc()
			return fmt.Errorf("connect peg data: %w", err)
		}
		b, err := n.state.GetPendingWithdrawalBundle(tx)
		if err != nil {
			return err
		}
		bundle = b
		if err := n.archive.AppendHeader(tx, header); err != nil {
			return fmt.Errorf("append header: %w", err)
		}
		if err := n.archive.PutBody(tx, header, body); err != nil {
			return fmt.Errorf("put body: %w", err)
		}
		for _, transaction := range body.Transactions {
			if err := n.mempool.Delete(tx, transaction.Txid()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.BlocksApplied.Inc()
	if bundle != nil {
		metrics.PendingWithdrawalBundle.Set(1)
	} else {
		metrics.PendingWithdrawalBundle.Set(0)
	}

	if bundle != nil {
		if err := n.peg.BroadcastWithdrawalBundle(ctx, *bundle); err != nil {
			n.logger.Warn("broadcast withdrawal bundle failed", zap.Error(err))
		}
	}
	return nil
}
