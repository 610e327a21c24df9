package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// applyDeltaSQL adds a delta to the snapshot row in one statement, so
// concurrent writers compose without reading the row first.
const applyDeltaSQL = `INSERT INTO invoice_stats (id, total_invoices, paid_invoices, unpaid_invoices, total_value, last_updated)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	total_invoices = invoice_stats.total_invoices + EXCLUDED.total_invoices,
	paid_invoices = invoice_stats.paid_invoices + EXCLUDED.paid_invoices,
	unpaid_invoices = invoice_stats.unpaid_invoices + EXCLUDED.unpaid_invoices,
	total_value = invoice_stats.total_value + EXCLUDED.total_value,
	last_updated = EXCLUDED.last_updated`

type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) WithTx(tx *gorm.DB) *StatsRepository {
	return &StatsRepository{db: tx}
}

// AddDelta applies signed deltas to the snapshot row.
func (r *StatsRepository) AddDelta(ctx context.Context, invoices, paid, unpaid int64, value currency.Amount, at time.Time) error {
	err := r.db.WithContext(ctx).Exec(applyDeltaSQL, models.StatsRowID, invoices, paid, unpaid, value, at).Error
	if err != nil {
		return fmt.Errorf("apply stats delta: %w", err)
	}
	return nil
}

// Get returns the snapshot row, or nil when it has never been written.
func (r *StatsRepository) Get(ctx context.Context) (*models.InvoiceStats, error) {
	return r.get(r.db.WithContext(ctx))
}

// GetForUpdate is Get holding the row lock on postgres.
func (r *StatsRepository) GetForUpdate(ctx context.Context) (*models.InvoiceStats, error) {
	return r.get(forUpdate(r.db.WithContext(ctx)))
}

func (r *StatsRepository) get(db *gorm.DB) (*models.InvoiceStats, error) {
	var s models.InvoiceStats
	err := db.First(&s, "id = ?", models.StatsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &s, nil
}

// Overwrite replaces the snapshot with s.
func (r *StatsRepository) Overwrite(ctx context.Context, s *models.InvoiceStats) error {
	s.ID = models.StatsRowID
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_invoices", "paid_invoices", "unpaid_invoices", "total_value", "last_updated"}),
	}).Create(s).Error
	if err != nil {
		return fmt.Errorf("overwrite stats: %w", err)
	}
	return nil
}

// InsertIfMissing writes s only when no snapshot row exists.
func (r *StatsRepository) InsertIfMissing(ctx context.Context, s *models.InvoiceStats) error {
	s.ID = models.StatsRowID
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(s).Error; err != nil {
		return fmt.Errorf("insert stats: %w", err)
	}
	return nil
}

func (r *StatsRepository) RecordReconciliation(ctx context.Context, rec *models.StatsReconciliation) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record reconciliation: %w", err)
	}
	return nil
}

// Reconciliations returns the latest runs, newest first.
func (r *StatsRepository) Reconciliations(ctx context.Context, limit int) ([]models.StatsReconciliation, error) {
	recs := []models.StatsReconciliation{}
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	return recs, nil
}
