// Package stats maintains the cached invoice statistics snapshot. The
// Aggregator is the only writer of the invoice_stats row.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/metrics"
	"invoice-bookkeeping-backend/internal/models"
	"invoice-bookkeeping-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultBatchSize = 500

type Snapshot struct {
	Total       int64           `json:"total"`
	Paid        int64           `json:"paid"`
	Unpaid      int64           `json:"unpaid"`
	TotalValue  currency.Amount `json:"totalValue"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Matches reports whether the counters agree and the values differ by at most tolerance.
func (s Snapshot) Matches(other Snapshot, tolerance currency.Amount) bool {
	return s.Total == other.Total &&
		s.Paid == other.Paid &&
		s.Unpaid == other.Unpaid &&
		s.TotalValue.Sub(other.TotalValue).Abs().LessThanOrEqual(tolerance)
}

func fromModel(m *models.InvoiceStats) Snapshot {
	return Snapshot{
		Total:       m.TotalInvoices,
		Paid:        m.PaidInvoices,
		Unpaid:      m.UnpaidInvoices,
		TotalValue:  m.TotalValue,
		LastUpdated: m.LastUpdated,
	}
}

func (s Snapshot) toModel() *models.InvoiceStats {
	return &models.InvoiceStats{
		ID:             models.StatsRowID,
		TotalInvoices:  s.Total,
		PaidInvoices:   s.Paid,
		UnpaidInvoices: s.Unpaid,
		TotalValue:     s.TotalValue,
		LastUpdated:    s.LastUpdated,
	}
}

// DriftError describes a snapshot that disagreed with a full recomputation.
type DriftError struct {
	Snapshot   Snapshot        `json:"snapshot"`
	Recomputed Snapshot        `json:"recomputed"`
	ValueDiff  currency.Amount `json:"valueDiff"`
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("stats drift: snapshot total=%d paid=%d unpaid=%d value=%s, recomputed total=%d paid=%d unpaid=%d value=%s",
		e.Snapshot.Total, e.Snapshot.Paid, e.Snapshot.Unpaid, e.Snapshot.TotalValue,
		e.Recomputed.Total, e.Recomputed.Paid, e.Recomputed.Unpaid, e.Recomputed.TotalValue)
}

// Report is the outcome of Reconcile. Drift is nil when the snapshot was exact.
type Report struct {
	Snapshot   Snapshot    `json:"snapshot"`
	Recomputed Snapshot    `json:"recomputed"`
	Drift      *DriftError `json:"drift,omitempty"`
	Repaired   bool        `json:"repaired"`
	CheckedAt  time.Time   `json:"checkedAt"`
}

type Aggregator struct {
	db        *gorm.DB
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	tolerance currency.Amount
	batchSize int
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithTolerance sets how far TotalValue may drift before Reconcile repairs it.
func WithTolerance(t currency.Amount) Option {
	return func(a *Aggregator) { a.tolerance = t.Abs() }
}

func WithBatchSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

func NewAggregator(db *gorm.DB, log *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		db:        db,
		log:       log.Named("stats"),
		now:       time.Now,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ApplyDelta adds d to the snapshot on tx, the caller's transaction. It is a
// single atomic statement, so concurrent deltas compose in any order.
func (a *Aggregator) ApplyDelta(ctx context.Context, tx *gorm.DB, d Delta) error {
	if d.IsZero() {
		return nil
	}
	return repository.NewStatsRepository(tx).AddDelta(ctx, d.Invoices, d.Paid, d.Unpaid(), d.Value, a.now().UTC())
}

// Snapshot returns the cached statistics, building them on first use.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	row, err := repository.NewStatsRepository(a.db).Get(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if row != nil {
		return fromModel(row), nil
	}
	return a.Recompute(ctx)
}

// EnsureSnapshot creates the snapshot row from a full scan when it is missing.
func (a *Aggregator) EnsureSnapshot(ctx context.Context) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewStatsRepository(tx)
		row, err := repo.Get(ctx)
		if err != nil || row != nil {
			return err
		}
		snap, err := a.scan(ctx, tx)
		if err != nil {
			return err
		}
		a.log.Info("stats snapshot initialized", zap.Int64("total", snap.Total), zap.String("total_value", snap.TotalValue.String()))
		return repo.InsertIfMissing(ctx, snap.toModel())
	})
}

// Recompute rebuilds the snapshot from every invoice row and overwrites it.
// On postgres the snapshot row stays locked for the duration, so deltas from
// concurrent writers queue behind the overwrite instead of being lost.
func (a *Aggregator) Recompute(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewStatsRepository(tx)
		if _, err := repo.GetForUpdate(ctx); err != nil {
			return err
		}
		var err error
		if snap, err = a.scan(ctx, tx); err != nil {
			return err
		}
		return repo.Overwrite(ctx, snap.toModel())
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("recompute stats: %w", err)
	}
	a.metrics.IncRecompute()
	a.log.Info("stats recomputed",
		zap.Int64("total", snap.Total),
		zap.Int64("paid", snap.Paid),
		zap.String("total_value", snap.TotalValue.String()))
	return snap, nil
}

// Reconcile compares the cached snapshot with a full recomputation. Drift is
// logged, counted, recorded and repaired by overwriting the snapshot; it is
// reported through the returned Report, never as an error.
func (a *Aggregator) Reconcile(ctx context.Context) (Report, error) {
	report := Report{CheckedAt: a.now().UTC()}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewStatsRepository(tx)
		row, err := repo.GetForUpdate(ctx)
		if err != nil {
			return err
		}
		if row != nil {
			report.Snapshot = fromModel(row)
		}
		if report.Recomputed, err = a.scan(ctx, tx); err != nil {
			return err
		}

		if row != nil && report.Snapshot.Matches(report.Recomputed, a.tolerance) {
			return a.record(ctx, repo, report)
		}

		report.Drift = &DriftError{
			Snapshot:   report.Snapshot,
			Recomputed: report.Recomputed,
			ValueDiff:  report.Snapshot.TotalValue.Sub(report.Recomputed.TotalValue),
		}
		if err := repo.Overwrite(ctx, report.Recomputed.toModel()); err != nil {
			return err
		}
		report.Repaired = true
		return a.record(ctx, repo, report)
	})
	if err != nil {
		return Report{}, fmt.Errorf("reconcile stats: %w", err)
	}

	if report.Drift != nil {
		a.metrics.IncDrift()
		a.log.Warn("stats drift repaired", zap.Error(report.Drift), zap.String("value_diff", report.Drift.ValueDiff.String()))
	} else {
		a.log.Info("stats reconciled, no drift", zap.Int64("total", report.Recomputed.Total))
	}
	return report, nil
}

// History returns the latest reconciliation runs.
func (a *Aggregator) History(ctx context.Context, limit int) ([]models.StatsReconciliation, error) {
	return repository.NewStatsRepository(a.db).Reconciliations(ctx, limit)
}

func (a *Aggregator) record(ctx context.Context, repo *repository.StatsRepository, report Report) error {
	details, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode reconciliation: %w", err)
	}
	return repo.RecordReconciliation(ctx, &models.StatsReconciliation{
		ID:        uuid.Must(uuid.NewV7()),
		Drifted:   report.Drift != nil,
		Details:   datatypes.JSON(details),
		CreatedAt: report.CheckedAt,
	})
}

// scan sums every invoice exactly in decimal arithmetic.
func (a *Aggregator) scan(ctx context.Context, tx *gorm.DB) (Snapshot, error) {
	snap := Snapshot{LastUpdated: a.now().UTC()}
	err := repository.NewInvoiceRepository(tx).FindInBatches(ctx, a.batchSize, func(batch []models.Invoice) error {
		for i := range batch {
			snap.Total++
			if batch[i].Paid {
				snap.Paid++
			}
			snap.TotalValue = snap.TotalValue.Add(batch[i].Total)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap.Unpaid = snap.Total - snap.Paid
	return snap, nil
}
