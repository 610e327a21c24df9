// Package query serves filtered, searched and sorted invoice listings for
// the dashboard. It reads invoice rows only, never the stats snapshot.
package query

import (
	"context"

	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/models"
	"invoice-bookkeeping-backend/internal/repository"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Params selects one page. All returns every matching row instead.
type Params struct {
	Page     int
	PageSize int
	Search   string
	Status   string
	Sort     string
	All      bool
}

// Pagination totals cover the whole filtered set, not just the current page.
type Pagination struct {
	CurrentPage   int             `json:"currentPage"`
	TotalPages    int             `json:"totalPages"`
	PageSize      int             `json:"pageSize"`
	TotalInvoices int64           `json:"totalInvoices"`
	TotalPaid     int64           `json:"totalPaid"`
	TotalUnpaid   int64           `json:"totalUnpaid"`
	TotalValue    currency.Amount `json:"totalValue"`
	HasNextPage   bool            `json:"hasNextPage"`
	HasPrevPage   bool            `json:"hasPrevPage"`
}

type Result struct {
	Items      []models.Invoice `json:"invoices"`
	Pagination Pagination       `json:"pagination"`
}

// ListParams is the plain-array variant. Limit 0 means no limit.
type ListParams struct {
	Limit  int
	Offset int
	Search string
	Status string
}

type Engine struct {
	invoices        *repository.InvoiceRepository
	defaultPageSize int
	maxPageSize     int
}

type Option func(*Engine)

// WithPageSizes overrides the default and maximum page sizes.
func WithPageSizes(def, max int) Option {
	return func(e *Engine) {
		if def > 0 {
			e.defaultPageSize = def
		}
		if max >= e.defaultPageSize {
			e.maxPageSize = max
		}
	}
}

func NewEngine(db *gorm.DB, opts ...Option) *Engine {
	e := &Engine{
		invoices:        repository.NewInvoiceRepository(db),
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query returns one page plus totals for everything the filter matches.
// Out-of-range page and page size are clamped; unknown status or sort
// values are validation errors.
func (e *Engine) Query(ctx context.Context, p Params) (Result, error) {
	status, err := ParseStatus(p.Status)
	if err != nil {
		return Result{}, err
	}
	sort, err := ParseSort(p.Sort)
	if err != nil {
		return Result{}, err
	}
	filter := repository.Filter{Search: p.Search, Paid: status.paidFilter()}

	totals, err := e.invoices.Totals(ctx, filter)
	if err != nil {
		return Result{}, err
	}
	pg := Pagination{
		TotalInvoices: totals.Count,
		TotalPaid:     totals.Paid,
		TotalUnpaid:   totals.Count - totals.Paid,
		TotalValue:    totals.Value,
	}

	page := repository.Page{Order: sort.orderBy()}
	if p.All {
		pg.CurrentPage = 1
		pg.PageSize = int(totals.Count)
		if totals.Count > 0 {
			pg.TotalPages = 1
		}
	} else {
		pg.CurrentPage = max(p.Page, 1)
		pg.PageSize = e.clampPageSize(p.PageSize)
		pg.TotalPages = int((totals.Count + int64(pg.PageSize) - 1) / int64(pg.PageSize))
		pg.HasNextPage = pg.CurrentPage < pg.TotalPages
		pg.HasPrevPage = pg.CurrentPage > 1
		if pg.CurrentPage > pg.TotalPages {
			// past the end; also keeps the offset below from overflowing
			return Result{Items: []models.Invoice{}, Pagination: pg}, nil
		}
		page.Limit = pg.PageSize
		page.Offset = (pg.CurrentPage - 1) * pg.PageSize
	}

	items, err := e.invoices.List(ctx, filter, page)
	if err != nil {
		return Result{}, err
	}
	return Result{Items: items, Pagination: pg}, nil
}

// List returns matching invoices newest first without a pagination envelope.
func (e *Engine) List(ctx context.Context, p ListParams) ([]models.Invoice, error) {
	status, err := ParseStatus(p.Status)
	if err != nil {
		return nil, err
	}
	return e.invoices.List(ctx,
		repository.Filter{Search: p.Search, Paid: status.paidFilter()},
		repository.Page{Order: SortNewestSubmitted.orderBy(), Limit: max(p.Limit, 0), Offset: max(p.Offset, 0)},
	)
}

func (e *Engine) clampPageSize(size int) int {
	switch {
	case size < 1:
		return e.defaultPageSize
	case size > e.maxPageSize:
		return e.maxPageSize
	default:
		return size
	}
}
