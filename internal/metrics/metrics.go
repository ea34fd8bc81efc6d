// Package metrics implements the engine's rolling trade-performance
// collector (spec §4.7, C3): latency and outcome samples over a bounded
// history window, percentiles by linear interpolation, and threshold
// alerts. It never blocks the execution path — every write is an
// in-memory append under a single mutex, the same eviction discipline
// internal/strategy's FlowTracker uses for its fill window.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// Sample is one recorded trade attempt.
type Sample struct {
	At                time.Time
	Outcome           types.Outcome
	TickToDecisionMs  float64
	DecisionToAckMs   float64
	ExpectedEdgeCents float64
	RealizedPnL       float64
}

// Thresholds are the values Alerts checks recorded metrics against.
type Thresholds struct {
	MaxP95DecisionToAckMs float64
	MinExecutionRate      float64 // fraction of attempts that end Filled
	MinWinRate            float64 // fraction of filled trades with RealizedPnL > 0
}

// Alert describes one breached threshold.
type Alert struct {
	Name     string
	Observed float64
	Limit    float64
}

// Snapshot is a consistent, torn-read-free view of the collector's current
// state (spec §4.7 "no torn reads across percentile fields").
type Snapshot struct {
	Count                int
	TickToDecisionP50Ms   float64
	TickToDecisionP95Ms   float64
	TickToDecisionP99Ms   float64
	DecisionToAckP50Ms    float64
	DecisionToAckP95Ms    float64
	DecisionToAckP99Ms    float64
	MeanExpectedEdgeCents float64
	ExecutionRate         float64
	WinRate               float64
	OutcomeCounts         map[types.Outcome]int
}

// Collector accumulates Samples within a bounded retention window and
// computes percentiles/alerts against the current contents.
type Collector struct {
	mu      sync.Mutex
	history time.Duration
	samples []Sample
}

// New creates a Collector retaining samples for historyHours (spec §6
// "history_hours").
func New(historyHours int) *Collector {
	return &Collector{history: time.Duration(historyHours) * time.Hour}
}

// Record appends one trade-attempt sample and prunes anything older than
// the retention window.
func (c *Collector) Record(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = append(c.samples, s)
	c.pruneLocked(s.At)
}

// pruneLocked evicts samples older than now - history. Caller must hold c.mu.
func (c *Collector) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.history)
	i := 0
	for i < len(c.samples) && c.samples[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.samples = append([]Sample{}, c.samples[i:]...)
	}
}

// Snapshot returns a consistent view of every derived metric computed over
// the currently retained samples.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := Snapshot{Count: len(c.samples), OutcomeCounts: make(map[types.Outcome]int)}
	if len(c.samples) == 0 {
		return out
	}

	tickToDecision := make([]float64, 0, len(c.samples))
	decisionToAck := make([]float64, 0, len(c.samples))
	var edgeSum float64
	filled, wins := 0, 0

	for _, s := range c.samples {
		tickToDecision = append(tickToDecision, s.TickToDecisionMs)
		decisionToAck = append(decisionToAck, s.DecisionToAckMs)
		edgeSum += s.ExpectedEdgeCents
		out.OutcomeCounts[s.Outcome]++
		if s.Outcome == types.OutcomeFilled {
			filled++
			if s.RealizedPnL > 0 {
				wins++
			}
		}
	}

	out.TickToDecisionP50Ms = percentile(tickToDecision, 0.50)
	out.TickToDecisionP95Ms = percentile(tickToDecision, 0.95)
	out.TickToDecisionP99Ms = percentile(tickToDecision, 0.99)
	out.DecisionToAckP50Ms = percentile(decisionToAck, 0.50)
	out.DecisionToAckP95Ms = percentile(decisionToAck, 0.95)
	out.DecisionToAckP99Ms = percentile(decisionToAck, 0.99)
	out.MeanExpectedEdgeCents = edgeSum / float64(len(c.samples))
	out.ExecutionRate = float64(filled) / float64(len(c.samples))
	if filled > 0 {
		out.WinRate = float64(wins) / float64(filled)
	}
	return out
}

// Alerts evaluates the current snapshot against thresholds and returns
// every breach (spec §4.7 "alerts(thresholds) returning a list of
// breaches").
func (c *Collector) Alerts(thresholds Thresholds) []Alert {
	snap := c.Snapshot()
	if snap.Count == 0 {
		return nil
	}

	var alerts []Alert
	if thresholds.MaxP95DecisionToAckMs > 0 && snap.DecisionToAckP95Ms > thresholds.MaxP95DecisionToAckMs {
		alerts = append(alerts, Alert{Name: "decision_to_ack_p95_ms", Observed: snap.DecisionToAckP95Ms, Limit: thresholds.MaxP95DecisionToAckMs})
	}
	if thresholds.MinExecutionRate > 0 && snap.ExecutionRate < thresholds.MinExecutionRate {
		alerts = append(alerts, Alert{Name: "execution_rate", Observed: snap.ExecutionRate, Limit: thresholds.MinExecutionRate})
	}
	if thresholds.MinWinRate > 0 && snap.WinRate < thresholds.MinWinRate {
		alerts = append(alerts, Alert{Name: "win_rate", Observed: snap.WinRate, Limit: thresholds.MinWinRate})
	}
	return alerts
}

// percentile computes the p-th percentile of values via linear
// interpolation between the two nearest ranks (spec §4.7 "via linear
// interpolation"). values is not mutated.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
