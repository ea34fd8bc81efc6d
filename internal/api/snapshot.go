package api

import (
	"time"

	"github.com/ChudiNnorukam/predictive-edge-bot/internal/config"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/metrics"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/risk"
	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// MarketSnapshotProvider is the engine's read-only surface for the
// dashboard. The engine implements this directly rather than the dashboard
// reaching into the FSM, risk gate, allocator, and scheduler individually.
type MarketSnapshotProvider interface {
	MarketSnapshots() []types.MarketSnapshot
	RiskSnapshot() risk.Snapshot
	MetricsSnapshot() metrics.Snapshot
	QueuedEligibleCount() int
	DashboardEvents() <-chan DashboardEvent
}

// BuildSnapshot aggregates state from every component into one dashboard
// snapshot.
func BuildSnapshot(provider MarketSnapshotProvider, cfg config.Config) DashboardSnapshot {
	marketSnaps := provider.MarketSnapshots()
	markets := make([]MarketStatus, 0, len(marketSnaps))
	for _, m := range marketSnaps {
		markets = append(markets, NewMarketStatus(m))
	}

	riskSnap := provider.RiskSnapshot()
	metricsSnap := provider.MetricsSnapshot()

	outcomeCounts := make(map[string]int, len(metricsSnap.OutcomeCounts))
	for outcome, count := range metricsSnap.OutcomeCounts {
		outcomeCounts[string(outcome)] = count
	}

	bankroll, _ := riskSnap.Bankroll.Float64()
	available, _ := riskSnap.AvailableCapital.Float64()
	totalExposure, _ := riskSnap.TotalExposure.Float64()
	dailyPnL, _ := riskSnap.DailyRealizedPnL.Float64()

	return DashboardSnapshot{
		Timestamp: time.Now(),
		Markets:   markets,
		Risk: RiskSnapshot{
			Bankroll:           bankroll,
			AvailableCapital:   available,
			TotalExposure:      totalExposure,
			DailyRealizedPnL:   dailyPnL,
			OutstandingOrders:  riskSnap.OutstandingCount,
			ActiveKillSwitches: riskSnap.ActiveKillSwitches,
		},
		Capital: CapitalSnapshot{
			Bankroll:         bankroll,
			AvailableCapital: available,
			TotalReserved:    bankroll - available,
		},
		Metrics: MetricsSnapshot{
			SampleCount:           metricsSnap.Count,
			TickToDecisionP50Ms:   metricsSnap.TickToDecisionP50Ms,
			TickToDecisionP95Ms:   metricsSnap.TickToDecisionP95Ms,
			TickToDecisionP99Ms:   metricsSnap.TickToDecisionP99Ms,
			DecisionToAckP50Ms:    metricsSnap.DecisionToAckP50Ms,
			DecisionToAckP95Ms:    metricsSnap.DecisionToAckP95Ms,
			DecisionToAckP99Ms:    metricsSnap.DecisionToAckP99Ms,
			MeanExpectedEdgeCents: metricsSnap.MeanExpectedEdgeCents,
			ExecutionRate:         metricsSnap.ExecutionRate,
			WinRate:               metricsSnap.WinRate,
			OutcomeCounts:         outcomeCounts,
		},
		Config: NewConfigSummary(cfg),
		MarketSource: MarketSourceInfo{
			MarketsTracked: len(marketSnaps),
			QueuedEligible: provider.QueuedEligibleCount(),
		},
	}
}
