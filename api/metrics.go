package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/warp/retention-engine/retention"
)

// Prometheus metrics for the retention API and alert scanner.
var (
	AccountsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "retention",
		Name:      "accounts_created_total",
		Help:      "Total number of retention accounts created",
	})

	ReleasesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "retention",
		Name:      "releases_recorded_total",
		Help:      "Total number of releases accepted",
	})

	ReleasesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "retention",
		Name:      "releases_rejected_total",
		Help:      "Total number of releases refused by validation",
	})

	AccountsForfeited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "retention",
		Name:      "accounts_forfeited_total",
		Help:      "Total number of accounts forfeited",
	})

	ActiveAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "retention",
		Name:      "active_alerts",
		Help:      "Alerts found by the last scan, by type",
	}, []string{"type"})

	OutstandingBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "retention",
		Name:      "outstanding_balance",
		Help:      "Outstanding retention balance from the last scan, by retention type",
	}, []string{"retention_type"})

	AlertScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retention",
		Name:      "alert_scans_total",
		Help:      "Alert scans by result",
	}, []string{"result"})
)

// recordAlerts sets the alert gauge for every type, zeroing absent ones.
func recordAlerts(alerts []retention.Alert) {
	counts := map[retention.AlertType]int{
		retention.AlertReleaseDue:       0,
		retention.AlertOverdue:          0,
		retention.AlertWarrantyExpiring: 0,
	}
	for _, a := range alerts {
		counts[a.AlertType]++
	}
	for t, n := range counts {
		ActiveAlerts.WithLabelValues(string(t)).Set(float64(n))
	}
}

func recordBalances(s retention.Summary) {
	receivable, _ := s.Receivables.Balance.Float64()
	payable, _ := s.Payables.Balance.Float64()
	OutstandingBalance.WithLabelValues(string(retention.Receivable)).Set(receivable)
	OutstandingBalance.WithLabelValues(string(retention.Payable)).Set(payable)
}
