package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChainHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "plainchain",
		Name:      "chain_height",
		Help:      "Height of the locally archived sidechain.",
	})

	UtxoCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "plainchain",
		Name:      "utxo_count",
		Help:      "Number of unspent outputs in the current UTXO set.",
	})

	MempoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "plainchain",
		Name:      "mempool_size",
		Help:      "Number of transactions currently held in the mempool.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "plainchain",
		Name:      "peers_connected",
		Help:      "Number of connected netp2p peers.",
	})

	PendingWithdrawalBundle = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "plainchain",
		Name:      "pending_withdrawal_bundle",
		Help:      "1 while a withdrawal bundle awaits mainchain settlement, else 0.",
	})

	DepositsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "plainchain",
		Name:      "deposits_ingested_total",
		Help:      "Total mainchain deposits folded into the UTXO set.",
	})

	BlocksApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "plainchain",
		Name:      "blocks_applied_total",
		Help:      "Total blocks successfully validated and connected.",
	})

	BlocksRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plainchain",
		Name:      "blocks_rejected_total",
		Help:      "Blocks rejected during validation, by reason.",
	}, []string{"reason"})

	BmmAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plainchain",
		Name:      "bmm_attempts_total",
		Help:      "Blind merged mining attempts, by result.",
	}, []string{"result"})

	UptimeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "plainchain",
		Name:      "uptime_seconds",
		Help:      "Node uptime in seconds.",
	})
)

func init() {
	prometheus.MustRegister(
		ChainHeight,
		UtxoCount,
		MempoolSize,
		PeersConnected,
		PendingWithdrawalBundle,
		DepositsIngested,
		BlocksApplied,
		BlocksRejected,
		BmmAttempts,
		UptimeSeconds,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
