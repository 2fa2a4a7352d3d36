package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"crowdsale/core/events"
	"crowdsale/core/types"
	"crowdsale/native/sale"
)

// SaleMetrics exposes the engine's observable activity to Prometheus.
type SaleMetrics struct {
	contributions prometheus.Counter
	totalRaised   prometheus.Gauge
	settlements   *prometheus.CounterVec
	finalized     *prometheus.GaugeVec
	emergencies   prometheus.Counter
}

var (
	saleOnce     sync.Once
	saleRegistry *SaleMetrics
)

// Sale returns the process-wide sale metrics, registering the collectors on
// first use.
func Sale() *SaleMetrics {
	saleOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			contributions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_contributions_total",
				Help: "Count of recorded contributions.",
			}),
			totalRaised: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "sale_total_raised_wei",
				Help: "Total base-currency value raised, in wei.",
			}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_settlements_total",
				Help: "Count of settled claims and refunds by kind.",
			}, []string{"kind"}),
			finalized: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "sale_finalized",
				Help: "Set to 1 when finalization commits, labelled by outcome.",
			}, []string{"outcome"}),
			emergencies: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_emergency_withdrawals_total",
				Help: "Count of operator emergency withdrawals.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.contributions,
			saleRegistry.totalRaised,
			saleRegistry.settlements,
			saleRegistry.finalized,
			saleRegistry.emergencies,
		)
	})
	return saleRegistry
}

// Emitter returns an event emitter that records engine events as metrics,
// suitable for fan-out alongside the log emitter.
func (m *SaleMetrics) Emitter() events.Emitter {
	return events.EmitterFunc(func(evt events.Event) {
		if m == nil || evt == nil {
			return
		}
		payload, _ := evt.(interface{ Event() *types.Event })
		switch evt.EventType() {
		case sale.EventTypeContribution:
			m.contributions.Inc()
			if payload != nil {
				if total, ok := attrFloat(payload.Event(), "totalRaised"); ok {
					m.totalRaised.Set(total)
				}
			}
		case sale.EventTypeClaimed:
			m.settlements.WithLabelValues("claim").Inc()
		case sale.EventTypeRefunded:
			m.settlements.WithLabelValues("refund").Inc()
		case sale.EventTypeFinalized:
			outcome := "failure"
			if payload != nil && payload.Event() != nil && payload.Event().Attributes["success"] == "true" {
				outcome = "success"
			}
			m.finalized.WithLabelValues(outcome).Set(1)
		case sale.EventTypeEmergency:
			m.emergencies.Inc()
		}
	})
}

func attrFloat(evt *types.Event, key string) (float64, bool) {
	if evt == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(evt.Attributes[key], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
