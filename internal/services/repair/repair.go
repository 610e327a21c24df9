// Package repair holds offline data-correction utilities for invoice totals.
// None of them run on the request path.
package repair

import (
	"context"
	"sort"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/metrics"
	"invoice-bookkeeping-backend/internal/models"
	"invoice-bookkeeping-backend/internal/repository"
	"invoice-bookkeeping-backend/internal/services/stats"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultOverflowPrecision is the numeric precision totals were once stored with.
const DefaultOverflowPrecision = 15

type Service struct {
	db      *gorm.DB
	stats   *stats.Aggregator
	log     *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(db *gorm.DB, agg *stats.Aggregator, log *zap.Logger, opts ...Option) *Service {
	s := &Service{db: db, stats: agg, log: log.Named("repair")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type TotalChange struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Supplier      string          `json:"supplier"`
	Before        currency.Amount `json:"before"`
	After         currency.Amount `json:"after"`
}

type LargeTotalsReport struct {
	Threshold currency.Amount `json:"threshold"`
	DryRun    bool            `json:"dryRun"`
	Changes   []TotalChange   `json:"changes"`
	SumBefore currency.Amount `json:"sumBefore"`
	SumAfter  currency.Amount `json:"sumAfter"`
}

// FixLargeTotals divides every total above threshold by 100. These come
// from legacy imports that dropped the decimal separator. The stats
// snapshot is recomputed once afterwards unless dryRun.
func (s *Service) FixLargeTotals(ctx context.Context, threshold currency.Amount, dryRun bool) (*LargeTotalsReport, error) {
	if threshold.IsNegative() || threshold.IsZero() {
		return nil, apperror.Validation("threshold", "must be positive")
	}
	invs, err := repository.NewInvoiceRepository(s.db).TotalsAbove(ctx, threshold)
	if err != nil {
		return nil, err
	}

	report := &LargeTotalsReport{Threshold: threshold, DryRun: dryRun, Changes: []TotalChange{}}
	for _, inv := range invs {
		after := inv.Total.Div(100)
		report.Changes = append(report.Changes, TotalChange{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Supplier:      inv.Supplier,
			Before:        inv.Total,
			After:         after,
		})
		report.SumBefore = report.SumBefore.Add(inv.Total)
		report.SumAfter = report.SumAfter.Add(after)
	}
	if dryRun || len(report.Changes) == 0 {
		return report, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewInvoiceRepository(tx)
		for _, c := range report.Changes {
			if err := repo.UpdateTotal(ctx, c.ID, c.After); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddMutations(metrics.OpUpdate, len(report.Changes))
	s.log.Info("large totals fixed",
		zap.Int("invoices", len(report.Changes)),
		zap.Stringer("threshold", threshold),
		zap.Stringer("sum_before", report.SumBefore),
		zap.Stringer("sum_after", report.SumAfter),
	)

	if _, err := s.stats.Recompute(ctx); err != nil {
		return report, err
	}
	return report, nil
}

type DuplicateGroup struct {
	InvoiceNumber string            `json:"invoiceNumber"`
	Count         int               `json:"count"`
	IDs           []uuid.UUID       `json:"ids"`
	Totals        []currency.Amount `json:"totals"`
	Sum           currency.Amount   `json:"sum"`
}

type DuplicatesReport struct {
	Groups []DuplicateGroup `json:"groups"`
	// ExtraRows counts rows beyond the first of each group.
	ExtraRows int `json:"extraRows"`
}

// FindDuplicates groups rows sharing an invoice number, largest groups first.
func (s *Service) FindDuplicates(ctx context.Context) (*DuplicatesReport, error) {
	invs, err := repository.NewInvoiceRepository(s.db).DuplicateNumbers(ctx)
	if err != nil {
		return nil, err
	}

	report := &DuplicatesReport{Groups: []DuplicateGroup{}}
	for _, inv := range invs {
		n := len(report.Groups)
		if n == 0 || report.Groups[n-1].InvoiceNumber != inv.InvoiceNumber {
			report.Groups = append(report.Groups, DuplicateGroup{InvoiceNumber: inv.InvoiceNumber})
			n++
		}
		g := &report.Groups[n-1]
		g.Count++
		g.IDs = append(g.IDs, inv.ID)
		g.Totals = append(g.Totals, inv.Total)
		g.Sum = g.Sum.Add(inv.Total)
	}
	sort.SliceStable(report.Groups, func(i, j int) bool {
		return report.Groups[i].Count > report.Groups[j].Count
	})
	for _, g := range report.Groups {
		report.ExtraRows += g.Count - 1
	}
	return report, nil
}

type OverflowReport struct {
	Precision int              `json:"precision"`
	Limit     currency.Amount  `json:"limit"`
	Invoices  []models.Invoice `json:"invoices"`
	Sum       currency.Amount  `json:"sum"`
	SumFits   bool             `json:"sumFits"`
}

// CheckOverflow lists invoices whose total would not fit numeric(precision,2)
// and reports whether the grand total would.
func (s *Service) CheckOverflow(ctx context.Context, precision int) (*OverflowReport, error) {
	if precision <= currency.Scale || precision > currency.StoragePrecision {
		return nil, apperror.Validationf("precision", "must be between %d and %d", currency.Scale+1, currency.StoragePrecision)
	}
	limit := currency.FromDecimal(decimal.New(1, int32(precision-currency.Scale)).Sub(decimal.New(1, -currency.Scale)))

	repo := repository.NewInvoiceRepository(s.db)
	invs, err := repo.TotalsAbove(ctx, limit)
	if err != nil {
		return nil, err
	}
	totals, err := repo.Totals(ctx, repository.Filter{})
	if err != nil {
		return nil, err
	}
	return &OverflowReport{
		Precision: precision,
		Limit:     limit,
		Invoices:  invs,
		Sum:       totals.Value,
		SumFits:   totals.Value.FitsPrecision(precision),
	}, nil
}
