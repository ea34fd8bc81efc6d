package api

import (
	"time"

	"github.com/ChudiNnorukam/predictive-edge-bot/internal/config"
	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// DashboardSnapshot is the full read-only dashboard state: one row per
// market the state machine currently tracks, plus the risk, capital, and
// metrics state that explains why each market is or isn't executing.
type DashboardSnapshot struct {
	Timestamp    time.Time      `json:"timestamp"`
	Markets      []MarketStatus `json:"markets"`
	Risk         RiskSnapshot   `json:"risk"`
	Capital      CapitalSnapshot `json:"capital"`
	Metrics      MetricsSnapshot `json:"metrics"`
	Config       ConfigSummary  `json:"config"`
	MarketSource MarketSourceInfo `json:"market_source"`
}

// MarketStatus is one market's FSM lifecycle state plus its latest book
// mirror and allocator reservation, replacing the teacher's quote/inventory
// view with the fields this engine's expiration-sniping lifecycle tracks.
type MarketStatus struct {
	TokenID         string    `json:"token_id"`
	ConditionID     string    `json:"condition_id"`
	Question        string    `json:"question"`
	State           string    `json:"state"`
	EndTime         time.Time `json:"end_date"`
	BestBid         float64   `json:"best_bid"`
	BestAsk         float64   `json:"best_ask"`
	LastTickAt      time.Time `json:"last_tick_at"`
	FailureCount    int       `json:"failure_count"`
	ReservedCapital float64   `json:"reserved_capital"`
	RealizedPnL     float64   `json:"realized_pnl"`
}

// NewMarketStatus converts an FSM snapshot into the dashboard's view.
func NewMarketStatus(snap types.MarketSnapshot) MarketStatus {
	return MarketStatus{
		TokenID:         snap.TokenID,
		ConditionID:     snap.ConditionID,
		Question:        snap.Question,
		State:           snap.State.String(),
		EndTime:         snap.EndTime,
		BestBid:         snap.BestBid,
		BestAsk:         snap.BestAsk,
		LastTickAt:      snap.LastTickAt,
		FailureCount:    snap.FailureCount,
		ReservedCapital: snap.ReservedCapital,
		RealizedPnL:     snap.RealizedPnL,
	}
}

// RiskSnapshot mirrors risk.Gate's Snapshot: bankroll, exposure, and which
// kill switches (if any) are currently open.
type RiskSnapshot struct {
	Bankroll           float64  `json:"bankroll"`
	AvailableCapital   float64  `json:"available_capital"`
	TotalExposure      float64  `json:"total_exposure"`
	DailyRealizedPnL   float64  `json:"daily_realized_pnl"`
	OutstandingOrders  int      `json:"outstanding_orders"`
	ActiveKillSwitches []string `json:"active_kill_switches"`
}

// CapitalSnapshot reports bankroll and available capital as tracked by the
// risk gate (the same figures as RiskSnapshot); TotalReserved is bankroll
// minus available capital.
type CapitalSnapshot struct {
	Bankroll         float64 `json:"bankroll"`
	AvailableCapital float64 `json:"available_capital"`
	TotalReserved    float64 `json:"total_reserved"`
}

// MetricsSnapshot mirrors metrics.Collector's rolling-window view of
// execution latency and outcome rates.
type MetricsSnapshot struct {
	SampleCount           int            `json:"sample_count"`
	TickToDecisionP50Ms   float64        `json:"tick_to_decision_p50_ms"`
	TickToDecisionP95Ms   float64        `json:"tick_to_decision_p95_ms"`
	TickToDecisionP99Ms   float64        `json:"tick_to_decision_p99_ms"`
	DecisionToAckP50Ms    float64        `json:"decision_to_ack_p50_ms"`
	DecisionToAckP95Ms    float64        `json:"decision_to_ack_p95_ms"`
	DecisionToAckP99Ms    float64        `json:"decision_to_ack_p99_ms"`
	MeanExpectedEdgeCents float64        `json:"mean_expected_edge_cents"`
	ExecutionRate         float64        `json:"execution_rate"`
	WinRate                float64       `json:"win_rate"`
	OutcomeCounts          map[string]int `json:"outcome_counts"`
}

// MarketSourceInfo reports how many markets the state machine tracks and
// how many are queued in the scheduler.
type MarketSourceInfo struct {
	MarketsTracked int `json:"markets_tracked"`
	QueuedEligible int `json:"queued_eligible"`
}

// ConfigSummary exposes the operationally relevant config knobs without
// leaking wallet keys or venue credentials onto the dashboard.
type ConfigSummary struct {
	DryRun                bool    `json:"dry_run"`
	TimeToEligibilitySec  int     `json:"time_to_eligibility_sec"`
	MaxBuyPrice           float64 `json:"max_buy_price"`
	MinEdge               float64 `json:"min_edge"`
	TokenSide             string  `json:"token_side"`
	MaxOutstandingOrders  int     `json:"max_outstanding_orders"`
	DailyLossLimitPercent float64 `json:"daily_loss_limit_percent"`
	InitialBankroll       float64 `json:"initial_bankroll"`
	MaxOrdersPerMinute    int     `json:"max_orders_per_minute"`
}

// NewConfigSummary builds a ConfigSummary from the engine's full config.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		DryRun:                cfg.DryRun,
		TimeToEligibilitySec:  cfg.Eligibility.TimeToEligibilitySec,
		MaxBuyPrice:           cfg.Eligibility.MaxBuyPrice,
		MinEdge:               cfg.Eligibility.MinEdge,
		TokenSide:             cfg.Eligibility.TokenSide,
		MaxOutstandingOrders:  cfg.Risk.MaxOutstandingOrders,
		DailyLossLimitPercent: cfg.Risk.DailyLossLimitPercent,
		InitialBankroll:       cfg.Capital.InitialBankroll,
		MaxOrdersPerMinute:    cfg.Executor.MaxOrdersPerMinute,
	}
}
