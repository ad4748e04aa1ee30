package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// PaymentExpiryWorker marks pending payment references older than the
// reference TTL as expired.
type PaymentExpiryWorker struct {
	repo     repository.PaymentRepository
	ttl      time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewPaymentExpiryWorker(repo repository.PaymentRepository, ttl, interval time.Duration,
	m *metrics.Metrics, log *logger.Logger) *PaymentExpiryWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &PaymentExpiryWorker{
		repo:     repo,
		ttl:      ttl,
		interval: interval,
		metrics:  m,
		logger:   log,
		now:      time.Now,
	}
}

// Start sweeps once immediately and then every interval until ctx is done.
func (w *PaymentExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error(err, "payment expiry sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *PaymentExpiryWorker) Sweep(ctx context.Context) (int64, error) {
	cutoff := w.now().UTC().Add(-w.ttl)

	rows, err := w.repo.ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire payment references: %w", err)
	}

	if rows > 0 {
		w.metrics.PaymentReference(string(model.PaymentReferenceExpired), int(rows))
		w.logger.Info("expired stale payment references", "count", rows, "cutoff", cutoff)
	}
	return rows, nil
}
