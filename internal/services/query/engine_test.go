package query

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/models"
	"invoice-bookkeeping-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, db *gorm.DB, n int) []models.Invoice {
	t.Helper()
	suppliers := []string{"PT Sumber Rejeki", "cv maju jaya", "Toko Abadi"}
	invs := make([]models.Invoice, 0, n)
	for i := 0; i < n; i++ {
		inv := models.Invoice{
			ID:            uuid.Must(uuid.NewV7()),
			Supplier:      suppliers[i%len(suppliers)],
			Branch:        models.BranchKuripan,
			Date:          models.FormatDate(base.AddDate(0, 0, i%7)),
			InvoiceNumber: fmt.Sprintf("INV-%03d", i),
			Total:         currency.FromInt(int64(1000 * (i + 1))),
			Description:   "stock",
			// consecutive pairs share a timestamp
			Timestamp: base.Add(time.Duration(i/2) * time.Minute),
			Paid:      i%4 == 0,
		}
		invs = append(invs, inv)
	}
	require.NoError(t, db.CreateInBatches(invs, 50).Error)
	return invs
}

func ids(invs []models.Invoice) []uuid.UUID {
	out := make([]uuid.UUID, len(invs))
	for i, inv := range invs {
		out[i] = inv.ID
	}
	return out
}

func TestQuery_PagesCoverFilteredSetExactlyOnce(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	seed(t, db, 23)
	e := NewEngine(db)

	for _, sort := range []string{"", "oldest-submitted", "newest-invoice-date", "supplier-ascending", "supplier-descending", "paid-status"} {
		t.Run("sort="+sort, func(t *testing.T) {
			seen := map[uuid.UUID]int{}
			page := 1
			for {
				res, err := e.Query(ctx, Params{Page: page, PageSize: 5, Sort: sort})
				require.NoError(t, err)
				assert.Equal(t, int64(23), res.Pagination.TotalInvoices)
				assert.Equal(t, 5, res.Pagination.TotalPages)
				for _, inv := range res.Items {
					seen[inv.ID]++
				}
				if !res.Pagination.HasNextPage {
					break
				}
				page++
			}
			assert.Equal(t, 5, page)
			assert.Len(t, seen, 23)
			for id, n := range seen {
				assert.Equal(t, 1, n, id.String())
			}
		})
	}
}

func TestQuery_StableOrdering(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	invs := seed(t, db, 12)
	e := NewEngine(db)

	first, err := e.Query(ctx, Params{Sort: "paid-status", PageSize: 50})
	require.NoError(t, err)
	second, err := e.Query(ctx, Params{Sort: "status", PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, ids(first.Items), ids(second.Items))

	// paid first, each group in insertion order
	var want []uuid.UUID
	for _, inv := range invs {
		if inv.Paid {
			want = append(want, inv.ID)
		}
	}
	for _, inv := range invs {
		if !inv.Paid {
			want = append(want, inv.ID)
		}
	}
	assert.Equal(t, want, ids(first.Items))

	newest, err := e.Query(ctx, Params{PageSize: 50})
	require.NoError(t, err)
	// timestamps tie in pairs; the earlier insert comes first within a pair
	assert.Equal(t, invs[10].ID, newest.Items[0].ID)
	assert.Equal(t, invs[11].ID, newest.Items[1].ID)
	assert.Equal(t, invs[0].ID, newest.Items[10].ID)
}

func TestQuery_StatusAndTotals(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	seed(t, db, 8) // paid: 0 and 4
	e := NewEngine(db)

	res, err := e.Query(ctx, Params{Status: "paid"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, int64(2), res.Pagination.TotalInvoices)
	assert.Equal(t, int64(2), res.Pagination.TotalPaid)
	assert.Equal(t, int64(0), res.Pagination.TotalUnpaid)
	assert.Equal(t, "6000.00", res.Pagination.TotalValue.String())

	res, err = e.Query(ctx, Params{Status: "UNPAID"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 6)
	assert.Equal(t, int64(6), res.Pagination.TotalUnpaid)

	res, err = e.Query(ctx, Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.Pagination.TotalInvoices)
	assert.Equal(t, "36000.00", res.Pagination.TotalValue.String())
}

func TestQuery_Search(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	seed(t, db, 12)
	require.NoError(t, db.Model(&models.Invoice{}).Where("invoice_number = ?", "INV-005").
		Update("description", "gula 50% diskon").Error)
	e := NewEngine(db)

	res, err := e.Query(ctx, Params{Search: "MAJU"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Pagination.TotalInvoices)
	for _, inv := range res.Items {
		assert.Equal(t, "cv maju jaya", inv.Supplier)
	}

	res, err = e.Query(ctx, Params{Search: "inv-007"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "INV-007", res.Items[0].InvoiceNumber)

	res, err = e.Query(ctx, Params{Search: "50%"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "INV-005", res.Items[0].InvoiceNumber)

	res, err = e.Query(ctx, Params{Search: "12.000"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "INV-011", res.Items[0].InvoiceNumber)

	res, err = e.Query(ctx, Params{Search: "nothing like this"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Pagination.TotalPages)
	assert.False(t, res.Pagination.HasNextPage)
}

func TestQuery_PagingClamps(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	seed(t, db, 7)
	e := NewEngine(db, WithPageSizes(3, 5))

	res, err := e.Query(ctx, Params{Page: -4})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pagination.CurrentPage)
	assert.Equal(t, 3, res.Pagination.PageSize)
	assert.Equal(t, 3, res.Pagination.TotalPages)
	assert.False(t, res.Pagination.HasPrevPage)
	assert.True(t, res.Pagination.HasNextPage)

	res, err = e.Query(ctx, Params{Page: 2, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Pagination.PageSize)
	assert.Len(t, res.Items, 2)
	assert.True(t, res.Pagination.HasPrevPage)
	assert.False(t, res.Pagination.HasNextPage)

	res, err = e.Query(ctx, Params{Page: 9, PageSize: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, int64(7), res.Pagination.TotalInvoices)

	// (page-1)*size would wrap around int without the end-of-results check
	res, err = e.Query(ctx, Params{Page: 288230376151711745, PageSize: 64})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	assert.Equal(t, 288230376151711745, res.Pagination.CurrentPage)
	assert.Equal(t, 2, res.Pagination.TotalPages)
	assert.False(t, res.Pagination.HasNextPage)

	res, err = e.Query(ctx, Params{Page: math.MaxInt, PageSize: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestQuery_AllMode(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	seed(t, db, 9)
	e := NewEngine(db, WithPageSizes(2, 4))

	res, err := e.Query(ctx, Params{All: true, Page: 3, PageSize: 2, Status: "unpaid"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 6)
	assert.Equal(t, 1, res.Pagination.CurrentPage)
	assert.Equal(t, 1, res.Pagination.TotalPages)
	assert.Equal(t, 6, res.Pagination.PageSize)
	assert.False(t, res.Pagination.HasNextPage)
	assert.False(t, res.Pagination.HasPrevPage)
}

func TestQuery_InvalidEnums(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(testutil.NewDB(t))

	_, err := e.Query(ctx, Params{Status: "overdue"})
	assert.True(t, apperror.IsValidation(err))

	_, err = e.Query(ctx, Params{Sort: "total; DROP TABLE invoices"})
	assert.True(t, apperror.IsValidation(err))

	_, err = e.List(ctx, ListParams{Status: "partial"})
	assert.True(t, apperror.IsValidation(err))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	invs := seed(t, db, 10)
	e := NewEngine(db)

	all, err := e.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Len(t, all, 10)
	assert.Equal(t, invs[8].ID, all[0].ID)

	window, err := e.List(ctx, ListParams{Limit: 3, Offset: 2, Status: "unpaid"})
	require.NoError(t, err)
	assert.Len(t, window, 3)
	for _, inv := range window {
		assert.False(t, inv.Paid)
	}
}

func TestParseSort(t *testing.T) {
	for alias, want := range sortAliases {
		got, err := ParseSort(alias)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := ParseSort("")
	require.NoError(t, err)
	assert.Equal(t, SortNewestSubmitted, got)

	for key, order := range sortOrders {
		assert.Equal(t, "id ASC", order[len(order)-1], string(key))
	}
}
