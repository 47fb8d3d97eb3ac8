/*
scheduler.go - Periodic alert scanner

PURPOSE:
  Alerts are derived, never stored. The scanner re-derives them on a ticker
  so that due, overdue and warranty notices show up in logs and in the
  retention_active_alerts gauge without anyone polling /api/alerts.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Scans once immediately on start
  - Each scan lists accounts, derives alerts as of Service.Today and
    refreshes the alert and outstanding-balance gauges
  - Overdue accounts are logged individually at warn level

CONFIGURATION:
  - Interval: alerts.scan_interval (default: 1 hour)
  - Enabled:  alerts.enabled (default: true)

USAGE:
  scanner := NewAlertScanner(service, opts, logger)
  scanner.Start()
  // ... later
  scanner.Stop()

SEE ALSO:
  - handlers.go: ListAlerts endpoint (on-demand derivation)
  - retention/aging.go: DeriveAlerts
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/retention-engine/retention"
)

// AlertScanner periodically derives alerts and publishes their counts.
type AlertScanner struct {
	Service  *retention.Service
	Options  retention.AlertOptions
	Interval time.Duration
	Enabled  bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAlertScanner creates a scanner with a one hour interval.
func NewAlertScanner(service *retention.Service, opts retention.AlertOptions, logger *zap.Logger) *AlertScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertScanner{
		Service:  service,
		Options:  opts,
		Interval: time.Hour,
		Enabled:  true,
		logger:   logger.Named("scanner"),
	}
}

// Start begins the scanner.
func (s *AlertScanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("alert scanner disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker.C, s.stop)

	s.logger.Info("alert scanner started", zap.Duration("interval", s.Interval))
}

// Stop stops the scanner and waits for an in-flight scan to finish.
func (s *AlertScanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.logger.Info("alert scanner stopped")
	}
}

func (s *AlertScanner) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow(context.Background())

	for {
		select {
		case <-tick:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one scan and returns the alerts it found.
func (s *AlertScanner) RunNow(ctx context.Context) []retention.Alert {
	alerts, err := s.Service.Alerts(ctx, retention.AccountFilter{}, s.Options)
	if err != nil {
		AlertScans.WithLabelValues("error").Inc()
		s.logger.Error("alert scan failed", zap.Error(err))
		return nil
	}

	summary, err := s.Service.Summary(ctx, retention.AccountFilter{})
	if err != nil {
		AlertScans.WithLabelValues("error").Inc()
		s.logger.Error("summary for alert scan failed", zap.Error(err))
		return nil
	}

	recordAlerts(alerts)
	recordBalances(summary)
	AlertScans.WithLabelValues("ok").Inc()

	counts := make(map[retention.AlertType]int)
	for _, a := range alerts {
		counts[a.AlertType]++
		if a.AlertType == retention.AlertOverdue {
			s.logger.Warn("retention overdue",
				zap.String("account_id", string(a.AccountID)),
				zap.String("project_id", a.ProjectID),
				zap.Int("days_overdue", -a.DaysUntilRelease),
				zap.String("balance", money(a.BalanceAmount)),
			)
		}
	}

	s.logger.Info("alert scan completed",
		zap.Int("due", counts[retention.AlertReleaseDue]),
		zap.Int("overdue", counts[retention.AlertOverdue]),
		zap.Int("warranty_expiring", counts[retention.AlertWarrantyExpiring]),
	)
	return alerts
}
