package invoices

import (
	"context"
	"strings"
	"time"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/logger"
	"invoice-bookkeeping-backend/internal/metrics"
	"invoice-bookkeeping-backend/internal/models"
	"invoice-bookkeeping-backend/internal/repository"
	"invoice-bookkeeping-backend/internal/services/stats"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateInput carries a new invoice. Total must already be normalized.
type CreateInput struct {
	Supplier      string
	Branch        string
	Date          string
	InvoiceNumber string
	Total         currency.Amount
	Description   string
}

// UpdateInput is a partial patch: nil fields are left untouched. An empty
// PaidDate counts as not supplied.
type UpdateInput struct {
	Supplier      *string
	Branch        *string
	Date          *string
	InvoiceNumber *string
	Total         *currency.Amount
	Description   *string
	Paid          *bool
	PaidDate      *string
}

// Service owns invoice rows. Every write and its stats delta share one transaction.
type Service struct {
	db      *gorm.DB
	stats   *stats.Aggregator
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(db *gorm.DB, agg *stats.Aggregator, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:    db,
		stats: agg,
		log:   log.Named("invoices"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Invoice, error) {
	branch, err := ValidateCreate(&in)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	inv := &models.Invoice{
		ID:            id,
		Supplier:      in.Supplier,
		Branch:        branch,
		Date:          in.Date,
		InvoiceNumber: in.InvoiceNumber,
		Total:         in.Total,
		Description:   in.Description,
		Timestamp:     s.now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewInvoiceRepository(tx).Create(ctx, inv); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, tx, stats.Created(inv))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncMutation(metrics.OpCreate)
	logger.FromContext(ctx, s.log).Info("invoice created",
		zap.String("id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total", inv.Total.String()))
	return inv, nil
}

// Update merges in into the stored invoice. Clearing paid clears paidDate;
// setting paid without a date keeps the stored one or uses today.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.Invoice, error) {
	invID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := validateUpdate(&in); err != nil {
		return nil, err
	}

	var updated *models.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewInvoiceRepository(tx)
		before, err := repo.GetForUpdate(ctx, invID)
		if err != nil {
			return err
		}
		after := *before
		if err := s.merge(&after, in); err != nil {
			return err
		}
		if err := repo.Save(ctx, &after); err != nil {
			return err
		}
		updated = &after
		return s.stats.ApplyDelta(ctx, tx, stats.Changed(before, &after))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncMutation(metrics.OpUpdate)
	logger.FromContext(ctx, s.log).Info("invoice updated",
		zap.String("id", updated.ID.String()),
		zap.Bool("paid", updated.Paid))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	invID, err := parseID(id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewInvoiceRepository(tx)
		inv, err := repo.GetForUpdate(ctx, invID)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, invID); err != nil {
			return err
		}
		return s.stats.ApplyDelta(ctx, tx, stats.Removed(inv))
	})
	if err != nil {
		return err
	}

	s.metrics.IncMutation(metrics.OpDelete)
	logger.FromContext(ctx, s.log).Info("invoice deleted", zap.String("id", id))
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Invoice, error) {
	invID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return repository.NewInvoiceRepository(s.db).GetByID(ctx, invID)
}

// Recent returns the n latest submissions.
func (s *Service) Recent(ctx context.Context, n int) ([]models.Invoice, error) {
	return repository.NewInvoiceRepository(s.db).Recent(ctx, n)
}

func (s *Service) merge(inv *models.Invoice, in UpdateInput) error {
	if in.Supplier != nil {
		inv.Supplier = *in.Supplier
	}
	if in.Branch != nil {
		inv.Branch = models.Branch(*in.Branch)
	}
	if in.Date != nil {
		inv.Date = *in.Date
	}
	if in.InvoiceNumber != nil {
		inv.InvoiceNumber = *in.InvoiceNumber
	}
	if in.Total != nil {
		inv.Total = *in.Total
	}
	if in.Description != nil {
		inv.Description = *in.Description
	}

	if in.Paid != nil {
		inv.Paid = *in.Paid
	}
	suppliedDate := in.PaidDate != nil && *in.PaidDate != ""

	switch {
	case !inv.Paid:
		if suppliedDate {
			return apperror.Validation("paidDate", "cannot be set on an unpaid invoice")
		}
		inv.PaidDate = nil
	case suppliedDate:
		d := *in.PaidDate
		inv.PaidDate = &d
	case inv.PaidDate == nil:
		d := models.FormatDate(s.now().UTC())
		inv.PaidDate = &d
	}
	return nil
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, apperror.NotFound("invoice", id)
	}
	return parsed, nil
}
