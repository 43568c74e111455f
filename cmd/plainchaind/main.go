// Command plainchaind runs a plainchain sidechain node: QUIC peer
// transport, mainchain RPC peg client, and an HTTP metrics endpoint.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/metrics"
	"github.com/djkazic/plainchain/internal/node"
	"github.com/djkazic/plainchain/internal/types"
)

func main() {
	dataDir := flag.String("datadir", "plainchain-data", "directory holding the node's database")
	bindAddr := flag.String("bind", "0.0.0.0:7777", "QUIC listen address")
	metricsAddr := flag.String("metrics", "127.0.0.1:9777", "Prometheus /metrics listen address")
	mainchainURL := flag.String("mainchain-rpc", "http://127.0.0.1:8332", "mainchain JSON-RPC URL")
	mainchainUser := flag.String("mainchain-rpc-user", "", "mainchain JSON-RPC username")
	mainchainPass := flag.String("mainchain-rpc-pass", "", "mainchain JSON-RPC password")
	sidechainNumber := flag.Uint("sidechain-number", 0, "this sidechain's slot number on the mainchain")
	peers := flag.String("peers", "", "comma-separated list of bootstrap peer addresses")
	coinbaseAddr := flag.String("coinbase-address", "", "sidechain address to pay block fees to; enables the mining driver loop when set")
	dev := flag.Bool("dev", false, "use a development logger instead of production JSON logging")
	flag.Parse()

	logger, err := newLogger(*dev)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := node.Config{
		DataDir:         *dataDir,
		BindAddr:        *bindAddr,
		MainchainURL:    *mainchainURL,
		MainchainUser:   *mainchainUser,
		MainchainPass:   *mainchainPass,
		SidechainNumber: uint8(*sidechainNumber),
	}
	if strings.TrimSpace(*coinbaseAddr) != "" {
		addr, err := types.ParseAddress(*coinbaseAddr)
		if err != nil {
			logger.Fatal("parse coinbase address", zap.Error(err))
		}
		cfg.CoinbaseAddress = &addr
	}

	n, err := node.New(cfg, logger)
	if err != nil {
		logger.Fatal("open node", zap.Error(err))
	}
	defer n.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, addr := range splitPeers(*peers) {
		if err := n.Connect(ctx, addr); err != nil {
			logger.Warn("connect to bootstrap peer failed", zap.String("addr", addr), zap.Error(err))
		}
	}

	startTime := time.Now()
	metricsSrv := startMetricsServer(*metricsAddr, startTime, logger)
	defer metricsSrv.Shutdown(context.Background())

	logger.Info("plainchain node starting",
		zap.String("bind", n.Addr()),
		zap.Uint8("sidechain_number", uint8(*sidechainNumber)),
		zap.Bool("mining", cfg.CoinbaseAddress != nil),
	)

	if err := n.Run(ctx); err != nil {
		logger.Fatal("node run failed", zap.Error(err))
	}
	logger.Info("plainchain node stopped")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func splitPeers(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var addrs []string
	for _, a := range strings.Split(csv, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

func startMetricsServer(addr string, startTime time.Time, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics.UptimeSeconds.Set(time.Since(startTime).Seconds())
		}
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
