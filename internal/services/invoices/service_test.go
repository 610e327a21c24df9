package invoices

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/models"
	"invoice-bookkeeping-backend/internal/services/stats"
	"invoice-bookkeeping-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	clock *testutil.Clock
	agg   *stats.Aggregator
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	agg := stats.NewAggregator(db, zap.NewNop(), stats.WithClock(clock.Now))
	require.NoError(t, agg.EnsureSnapshot(context.Background()))
	svc := NewService(db, agg, zap.NewNop(), WithClock(func() time.Time { return clock.Tick(time.Second) }))
	return &fixture{db: db, clock: clock, agg: agg, svc: svc}
}

func input(number, total string) CreateInput {
	return CreateInput{
		Supplier:      "PT Sumber Rejeki",
		Branch:        "kuripan",
		Date:          "2025-01-10",
		InvoiceNumber: number,
		Total:         currency.MustParse(total),
		Description:   "  beras 10 karung  ",
	}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	snap, err := f.agg.Snapshot(ctx)
	require.NoError(t, err)

	var rows int64
	require.NoError(t, f.db.Model(&models.Invoice{}).Count(&rows).Error)
	assert.Equal(t, rows, snap.Total)

	report, err := f.agg.Reconcile(ctx)
	require.NoError(t, err)
	assert.Nil(t, report.Drift, "snapshot drifted from the invoice table")
}

func TestCreateAndMarkPaidScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var created []*models.Invoice
	for i, raw := range []string{"1.000.000,00", "500000", "Rp 2.000.000,00"} {
		inv, err := f.svc.Create(ctx, input("INV-00"+string(rune('1'+i)), raw))
		require.NoError(t, err)
		created = append(created, inv)
	}
	assert.Equal(t, "1000000.00", created[0].Total.String())
	assert.Equal(t, "500000.00", created[1].Total.String())
	assert.Equal(t, "2000000.00", created[2].Total.String())
	assert.Equal(t, models.BranchKuripan, created[0].Branch)
	assert.Equal(t, "beras 10 karung", created[0].Description)
	assert.False(t, created[0].Paid)
	assert.Nil(t, created[0].PaidDate)

	snap, err := f.agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Total)
	assert.Equal(t, int64(0), snap.Paid)
	assert.Equal(t, int64(3), snap.Unpaid)
	assert.Equal(t, "3500000.00", snap.TotalValue.String())

	updated, err := f.svc.Update(ctx, created[1].ID.String(), UpdateInput{Paid: ptr(true), PaidDate: ptr("2025-01-01")})
	require.NoError(t, err)
	require.NotNil(t, updated.PaidDate)
	assert.Equal(t, "2025-01-01", *updated.PaidDate)

	snap, err = f.agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Paid)
	assert.Equal(t, int64(2), snap.Unpaid)
	assert.Equal(t, "3500000.00", snap.TotalValue.String())

	f.assertConsistent(t)
}

func TestUpdate_IsPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv, err := f.svc.Create(ctx, input("INV-1", "750.000"))
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, inv.ID.String(), UpdateInput{Paid: ptr(true)})
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, inv.ID.String())
	require.NoError(t, err)
	for _, got := range []*models.Invoice{updated, stored} {
		assert.Equal(t, inv.Supplier, got.Supplier)
		assert.Equal(t, inv.Branch, got.Branch)
		assert.Equal(t, inv.Date, got.Date)
		assert.Equal(t, inv.InvoiceNumber, got.InvoiceNumber)
		assert.True(t, inv.Total.Equal(got.Total))
		assert.Equal(t, inv.Description, got.Description)
		assert.True(t, got.Paid)
	}

	updated, err = f.svc.Update(ctx, inv.ID.String(), UpdateInput{Total: ptr(currency.MustParse("800000"))})
	require.NoError(t, err)
	assert.Equal(t, "800000.00", updated.Total.String())
	assert.True(t, updated.Paid, "paid survives an unrelated patch")

	snap, err := f.agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "800000.00", snap.TotalValue.String())
	f.assertConsistent(t)
}

func TestUpdate_PaidDateRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv, err := f.svc.Create(ctx, input("INV-1", "100"))
	require.NoError(t, err)
	id := inv.ID.String()

	t.Run("paid without date defaults to today", func(t *testing.T) {
		got, err := f.svc.Update(ctx, id, UpdateInput{Paid: ptr(true)})
		require.NoError(t, err)
		require.NotNil(t, got.PaidDate)
		assert.Equal(t, "2025-06-15", *got.PaidDate)
	})

	t.Run("paid again keeps the stored date", func(t *testing.T) {
		_, err := f.svc.Update(ctx, id, UpdateInput{PaidDate: ptr("2025-02-02")})
		require.NoError(t, err)
		got, err := f.svc.Update(ctx, id, UpdateInput{Paid: ptr(true)})
		require.NoError(t, err)
		assert.Equal(t, "2025-02-02", *got.PaidDate)
	})

	t.Run("unpaid clears the date", func(t *testing.T) {
		got, err := f.svc.Update(ctx, id, UpdateInput{Paid: ptr(false)})
		require.NoError(t, err)
		assert.False(t, got.Paid)
		assert.Nil(t, got.PaidDate)

		stored, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, stored.PaidDate)
	})

	t.Run("empty date on unpaid is accepted", func(t *testing.T) {
		got, err := f.svc.Update(ctx, id, UpdateInput{Paid: ptr(false), PaidDate: ptr("")})
		require.NoError(t, err)
		assert.Nil(t, got.PaidDate)
	})

	t.Run("date on unpaid invoice is rejected", func(t *testing.T) {
		_, err := f.svc.Update(ctx, id, UpdateInput{PaidDate: ptr("2025-03-03")})
		assert.True(t, apperror.IsValidation(err))

		_, err = f.svc.Update(ctx, id, UpdateInput{Paid: ptr(false), PaidDate: ptr("2025-03-03")})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("malformed paid date", func(t *testing.T) {
		_, err := f.svc.Update(ctx, id, UpdateInput{Paid: ptr(true), PaidDate: ptr("03/03/2025")})
		require.Error(t, err)
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "paidDate", appErr.Field)
	})

	f.assertConsistent(t)
}

func TestCreate_ValidationWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := map[string]func(*CreateInput){
		"supplier":      func(in *CreateInput) { in.Supplier = "   " },
		"supplierLen":   func(in *CreateInput) { in.Supplier = strings.Repeat("a", 256) },
		"branch":        func(in *CreateInput) { in.Branch = "Jakarta" },
		"date":          func(in *CreateInput) { in.Date = "2025-02-30" },
		"invoiceNumber": func(in *CreateInput) { in.InvoiceNumber = "" },
		"invoiceLen":    func(in *CreateInput) { in.InvoiceNumber = strings.Repeat("9", 101) },
		"negative":      func(in *CreateInput) { in.Total = currency.FromInt(-5) },
		"overflow":      func(in *CreateInput) { in.Total = currency.MustParse("1000000000000000000") },
		"description":   func(in *CreateInput) { in.Description = strings.Repeat("x", 1001) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := input("INV-X", "1000")
			mutate(&in)
			_, err := f.svc.Create(ctx, in)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}

	var rows int64
	require.NoError(t, f.db.Model(&models.Invoice{}).Count(&rows).Error)
	assert.Zero(t, rows)
	snap, err := f.agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.True(t, snap.TotalValue.IsZero())
}

func TestUpdate_ValidationLeavesRowAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv, err := f.svc.Create(ctx, input("INV-1", "100"))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, inv.ID.String(), UpdateInput{Total: ptr(currency.MustParse("999")), Branch: ptr("Nowhere")})
	assert.True(t, apperror.IsValidation(err))

	stored, err := f.svc.Get(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "100.00", stored.Total.String())
	f.assertConsistent(t)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	missing := uuid.Must(uuid.NewV7()).String()

	_, err := f.svc.Get(ctx, missing)
	assert.True(t, apperror.IsNotFound(err))
	_, err = f.svc.Update(ctx, missing, UpdateInput{Paid: ptr(true)})
	assert.True(t, apperror.IsNotFound(err))
	assert.True(t, apperror.IsNotFound(f.svc.Delete(ctx, missing)))
	assert.True(t, apperror.IsNotFound(f.svc.Delete(ctx, "not-a-uuid")))
	_, err = f.svc.Get(ctx, "42")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDelete_AppliesNegativeDelta(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, err := f.svc.Create(ctx, input("INV-1", "100"))
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, input("INV-2", "250"))
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, b.ID.String(), UpdateInput{Paid: ptr(true)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, b.ID.String()))
	snap, err := f.agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Total)
	assert.Equal(t, int64(0), snap.Paid)
	assert.Equal(t, int64(1), snap.Unpaid)
	assert.Equal(t, "100.00", snap.TotalValue.String())

	require.NoError(t, f.svc.Delete(ctx, a.ID.String()))
	snap, err = f.agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.True(t, snap.TotalValue.IsZero())
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, n := range []string{"A", "B", "C"} {
		_, err := f.svc.Create(ctx, input(n, "1"))
		require.NoError(t, err)
	}
	recent, err := f.svc.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "C", recent[0].InvoiceNumber)
	assert.Equal(t, "B", recent[1].InvoiceNumber)
}

func TestRandomSequenceKeepsSnapshotExact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))
	totals := []string{"1.000.000,00", "500000", "Rp 2.000.000,00", "56.489.562.78", "165.522", "1234.56", "0,01"}

	var live []string
	for i := 0; i < 120; i++ {
		switch op := rng.Intn(10); {
		case op < 5 || len(live) == 0:
			inv, err := f.svc.Create(ctx, input("R-"+uuid.NewString()[:6], totals[rng.Intn(len(totals))]))
			require.NoError(t, err)
			live = append(live, inv.ID.String())
		case op < 8:
			id := live[rng.Intn(len(live))]
			patch := UpdateInput{Paid: ptr(rng.Intn(2) == 0)}
			if rng.Intn(2) == 0 {
				patch.Total = ptr(currency.MustParse(totals[rng.Intn(len(totals))]))
			}
			_, err := f.svc.Update(ctx, id, patch)
			require.NoError(t, err)
		default:
			idx := rng.Intn(len(live))
			require.NoError(t, f.svc.Delete(ctx, live[idx]))
			live = append(live[:idx], live[idx+1:]...)
		}
	}

	snap, err := f.agg.Snapshot(ctx)
	require.NoError(t, err)
	recomputed, err := f.agg.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(live)), snap.Total)
	assert.True(t, snap.Matches(recomputed, currency.Zero), "snapshot %+v, recomputed %+v", snap, recomputed)
}
