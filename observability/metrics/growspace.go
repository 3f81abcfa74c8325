package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// GrowspaceMetrics tracks ledger activity, crediting and reward payouts.
type GrowspaceMetrics struct {
	transactions   *prometheus.CounterVec
	txLatency      *prometheus.HistogramVec
	votesAppended  prometheus.Counter
	votersCredited prometheus.Counter
	rollovers      prometheus.Counter
	currentPeriod  prometheus.Gauge
	claims         *prometheus.CounterVec
	rewardsPaid    prometheus.Counter
	bytesGrown     prometheus.Counter
	rentPrepaid    prometheus.Counter
	eventsIndexed  *prometheus.CounterVec
}

var (
	growspaceOnce     sync.Once
	growspaceRegistry *GrowspaceMetrics
)

// Growspace returns the lazily registered metrics singleton.
func Growspace() *GrowspaceMetrics {
	growspaceOnce.Do(func() {
		growspaceRegistry = &GrowspaceMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "growspace",
				Name:      "transactions_total",
				Help:      "Ledger transactions segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			txLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "growspace",
				Name:      "transaction_duration_seconds",
				Help:      "Time spent executing and committing a ledger transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			votesAppended: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "growspace",
				Name:      "votes_appended_total",
				Help:      "Votes accepted into ledger records.",
			}),
			votersCredited: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "growspace",
				Name:      "voters_credited_total",
				Help:      "Endorsers credited for backing a majority fingerprint.",
			}),
			rollovers: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "growspace",
				Name:      "period_rollovers_total",
				Help:      "Reward period rollovers observed.",
			}),
			currentPeriod: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "growspace",
				Name:      "current_period",
				Help:      "Reward period index currently open.",
			}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "growspace",
				Name:      "claims_total",
				Help:      "Reward claims segmented by result.",
			}, []string{"result"}),
			rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "growspace",
				Name:      "rewards_paid_total",
				Help:      "Units paid out of the treasury.",
			}),
			bytesGrown: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "growspace",
				Name:      "ledger_bytes_grown_total",
				Help:      "Bytes added to ledger record capacity.",
			}),
			rentPrepaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "growspace",
				Name:      "rent_prepaid_total",
				Help:      "Units moved into ledger deposits to cover storage growth.",
			}),
			eventsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "growspace",
				Name:      "events_indexed_total",
				Help:      "Events persisted by the indexer segmented by type and outcome.",
			}, []string{"type", "outcome"}),
		}
		prometheus.MustRegister(
			growspaceRegistry.transactions,
			growspaceRegistry.txLatency,
			growspaceRegistry.votesAppended,
			growspaceRegistry.votersCredited,
			growspaceRegistry.rollovers,
			growspaceRegistry.currentPeriod,
			growspaceRegistry.claims,
			growspaceRegistry.rewardsPaid,
			growspaceRegistry.bytesGrown,
			growspaceRegistry.rentPrepaid,
			growspaceRegistry.eventsIndexed,
		)
	})
	return growspaceRegistry
}

// ObserveTransaction records the outcome and latency of a transaction.
func (m *GrowspaceMetrics) ObserveTransaction(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.transactions.WithLabelValues(operation, outcome).Inc()
	m.txLatency.WithLabelValues(operation).Observe(seconds)
}

// ObserveVote records an accepted vote and its side effects.
func (m *GrowspaceMetrics) ObserveVote(bytesAdded uint64, rentPaid float64, credited int) {
	if m == nil {
		return
	}
	m.votesAppended.Inc()
	m.bytesGrown.Add(float64(bytesAdded))
	if rentPaid > 0 {
		m.rentPrepaid.Add(rentPaid)
	}
	if credited > 0 {
		m.votersCredited.Add(float64(credited))
	}
}

// ObserveRentPrepaid records a deposit made outside of vote growth.
func (m *GrowspaceMetrics) ObserveRentPrepaid(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.rentPrepaid.Add(amount)
}

// ObserveRollover records a period rollover.
func (m *GrowspaceMetrics) ObserveRollover(newPeriod uint64) {
	if m == nil {
		return
	}
	m.rollovers.Inc()
	m.currentPeriod.Set(float64(newPeriod))
}

// SetCurrentPeriod publishes the open period without counting a rollover.
func (m *GrowspaceMetrics) SetCurrentPeriod(period uint64) {
	if m == nil {
		return
	}
	m.currentPeriod.Set(float64(period))
}

// ObserveClaim records a claim attempt and the reward paid on success.
func (m *GrowspaceMetrics) ObserveClaim(result string, reward float64) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.claims.WithLabelValues(result).Inc()
	if reward > 0 {
		m.rewardsPaid.Add(reward)
	}
}

// ObserveIndexed records an indexer write.
func (m *GrowspaceMetrics) ObserveIndexed(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsIndexed.WithLabelValues(eventType, outcome).Inc()
}
