package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

func (r *InvoiceRepository) DB() *gorm.DB {
	return r.db
}

// Filter narrows invoice listings. Zero value matches everything.
type Filter struct {
	Search string
	Paid   *bool
}

// Page controls ordering and windowing. Limit 0 means no limit.
type Page struct {
	Order  []string
	Limit  int
	Offset int
}

// Totals aggregates the filtered set.
type Totals struct {
	Count int64
	Paid  int64
	Value currency.Amount
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	if err := r.db.WithContext(ctx).Create(inv).Error; err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// CreateInBatches inserts rows without touching the stats snapshot.
func (r *InvoiceRepository) CreateInBatches(ctx context.Context, invs []models.Invoice, size int) error {
	if len(invs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(invs, size).Error; err != nil {
		return fmt.Errorf("bulk insert invoices: %w", err)
	}
	return nil
}

// Save writes every column of inv.
func (r *InvoiceRepository) Save(ctx context.Context, inv *models.Invoice) error {
	if err := r.db.WithContext(ctx).Save(inv).Error; err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) UpdateTotal(ctx context.Context, id uuid.UUID, total currency.Amount) error {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Update("total", total)
	if res.Error != nil {
		return fmt.Errorf("update invoice total: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("invoice", id.String())
	}
	return nil
}

func (r *InvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Invoice{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete invoice: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("invoice", id.String())
	}
	return nil
}

// GetByID fetch a single invoice by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return r.get(r.db.WithContext(ctx), id)
}

// GetForUpdate loads the row and, on postgres, holds its lock until the transaction ends.
func (r *InvoiceRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return r.get(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *InvoiceRepository) get(db *gorm.DB, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := db.First(&inv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("invoice", id.String())
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}

// Recent returns the n most recently submitted invoices.
func (r *InvoiceRepository) Recent(ctx context.Context, n int) ([]models.Invoice, error) {
	invs := []models.Invoice{}
	err := r.db.WithContext(ctx).Order("timestamp DESC").Order("id ASC").Limit(n).Find(&invs).Error
	if err != nil {
		return nil, fmt.Errorf("recent invoices: %w", err)
	}
	return invs, nil
}

// List returns the filtered invoices in page order.
func (r *InvoiceRepository) List(ctx context.Context, f Filter, p Page) ([]models.Invoice, error) {
	q := r.db.WithContext(ctx).Model(&models.Invoice{}).Scopes(f.scope)
	for _, o := range p.Order {
		q = q.Order(o)
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	invs := []models.Invoice{}
	if err := q.Find(&invs).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invs, nil
}

// Totals counts and sums the filtered set.
func (r *InvoiceRepository) Totals(ctx context.Context, f Filter) (Totals, error) {
	var row struct {
		Count int64
		Paid  int64
		Value currency.Amount
	}
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).Scopes(f.scope).
		Select("COUNT(*) AS count, " +
			"COALESCE(SUM(CASE WHEN paid THEN 1 ELSE 0 END), 0) AS paid, " +
			"COALESCE(SUM(total), 0) AS value").
		Scan(&row).Error
	if err != nil {
		return Totals{}, fmt.Errorf("invoice totals: %w", err)
	}
	return Totals{Count: row.Count, Paid: row.Paid, Value: row.Value}, nil
}

// FindInBatches walks every invoice in primary-key order.
func (r *InvoiceRepository) FindInBatches(ctx context.Context, size int, fn func([]models.Invoice) error) error {
	var batch []models.Invoice
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	if res.Error != nil {
		return fmt.Errorf("scan invoices: %w", res.Error)
	}
	return nil
}

// TotalsAbove lists invoices whose total is strictly greater than threshold.
func (r *InvoiceRepository) TotalsAbove(ctx context.Context, threshold currency.Amount) ([]models.Invoice, error) {
	var invs []models.Invoice
	err := r.db.WithContext(ctx).Where("total > ?", threshold).Order("total DESC").Order("id ASC").Find(&invs).Error
	if err != nil {
		return nil, fmt.Errorf("invoices above threshold: %w", err)
	}
	return invs, nil
}

// DuplicateNumbers returns every row whose invoice number occurs more than once,
// grouped by number.
func (r *InvoiceRepository) DuplicateNumbers(ctx context.Context) ([]models.Invoice, error) {
	dupes := r.db.Model(&models.Invoice{}).Select("invoice_number").
		Group("invoice_number").Having("COUNT(*) > 1")
	var invs []models.Invoice
	err := r.db.WithContext(ctx).Where("invoice_number IN (?)", dupes).
		Order("invoice_number ASC").Order("timestamp ASC").Order("id ASC").Find(&invs).Error
	if err != nil {
		return nil, fmt.Errorf("duplicate invoice numbers: %w", err)
	}
	return invs, nil
}

// ExistingNumbers reports which of nums are already stored.
func (r *InvoiceRepository) ExistingNumbers(ctx context.Context, nums []string) (map[string]bool, error) {
	found := make(map[string]bool, len(nums))
	if len(nums) == 0 {
		return found, nil
	}
	var stored []string
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("invoice_number IN ?", nums).Distinct().Pluck("invoice_number", &stored).Error
	if err != nil {
		return nil, fmt.Errorf("existing invoice numbers: %w", err)
	}
	for _, n := range stored {
		found[n] = true
	}
	return found, nil
}

func (f Filter) scope(db *gorm.DB) *gorm.DB {
	if f.Paid != nil {
		db = db.Where("paid = ?", *f.Paid)
	}
	term := strings.TrimSpace(f.Search)
	if term == "" {
		return db
	}
	like := "%" + escapeLike(strings.ToLower(term)) + "%"
	cond := "LOWER(supplier) LIKE ? ESCAPE '\\' OR LOWER(invoice_number) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\'"
	args := []any{like, like, like}
	if digits, ok := currency.SearchDigits(term); ok {
		cond += " OR CAST(total AS TEXT) LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLike(digits)+"%")
	}
	return db.Where("("+cond+")", args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
