package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics aggregates the redemption engine's operational counters.
type VaultMetrics struct {
	redemptionsSettled  *prometheus.CounterVec
	redemptionsRejected *prometheus.CounterVec
	redeemedUsd         prometheus.Counter
	feesUsd             prometheus.Counter
	roundRemainingUsd   prometheus.Gauge
	vaultBalance        *prometheus.GaugeVec
	payoutFailures      *prometheus.CounterVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the process-wide metrics registry, creating and registering
// it on first use.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			redemptionsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_redemptions_settled_total",
				Help: "Count of settled redemptions by payout asset.",
			}, []string{"asset"}),
			redemptionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_redemptions_rejected_total",
				Help: "Count of rejected redemption attempts by reason.",
			}, []string{"reason"}),
			redeemedUsd: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_redeemed_usd_total",
				Help: "Cumulative USD value of settled redemptions.",
			}),
			feesUsd: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_fees_usd_total",
				Help: "Cumulative USD value of fees retained by the vault.",
			}),
			roundRemainingUsd: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_round_remaining_usd",
				Help: "Redeemable USD left in the active funding round.",
			}),
			vaultBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "vault_balance_base_units",
				Help: "Vault holding per payout asset in base units.",
			}, []string{"asset"}),
			payoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_payout_failures_total",
				Help: "Count of failed external payout transfers by asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			vaultRegistry.redemptionsSettled,
			vaultRegistry.redemptionsRejected,
			vaultRegistry.redeemedUsd,
			vaultRegistry.feesUsd,
			vaultRegistry.roundRemainingUsd,
			vaultRegistry.vaultBalance,
			vaultRegistry.payoutFailures,
		)
	})
	return vaultRegistry
}

// ObserveSettled records a settled redemption.
func (m *VaultMetrics) ObserveSettled(asset string, amountUsd, feeUsd float64) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.redemptionsSettled.WithLabelValues(asset).Inc()
	if amountUsd > 0 {
		m.redeemedUsd.Add(amountUsd)
	}
	if feeUsd > 0 {
		m.feesUsd.Add(feeUsd)
	}
}

// ObserveRejected records a rejected redemption attempt.
func (m *VaultMetrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.redemptionsRejected.WithLabelValues(reason).Inc()
}

// SetRoundRemaining publishes the active round's remaining USD allocation.
func (m *VaultMetrics) SetRoundRemaining(remainingUsd float64) {
	if m == nil {
		return
	}
	m.roundRemainingUsd.Set(remainingUsd)
}

// SetBalance publishes the vault's holding for one payout asset.
func (m *VaultMetrics) SetBalance(asset string, baseUnits float64) {
	if m == nil || asset == "" {
		return
	}
	m.vaultBalance.WithLabelValues(asset).Set(baseUnits)
}

// ObservePayoutFailure records a failed external transfer.
func (m *VaultMetrics) ObservePayoutFailure(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.payoutFailures.WithLabelValues(asset).Inc()
}
