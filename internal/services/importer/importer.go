// Package importer bulk-loads invoices from spreadsheet exports.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/metrics"
	"invoice-bookkeeping-backend/internal/models"
	"invoice-bookkeeping-backend/internal/repository"
	"invoice-bookkeeping-backend/internal/services/invoices"
	"invoice-bookkeeping-backend/internal/services/matching"
	"invoice-bookkeeping-backend/internal/services/stats"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultBatchSize = 200

	// duplicate lookups are chunked to stay under driver parameter limits
	lookupChunk = 500
)

type column int

const (
	colTimestamp column = iota
	colSupplier
	colBranch
	colDate
	colInvoiceNumber
	colTotal
	colDescription
	colStatus
	colPaidDate
	numColumns
)

var headerAliases = map[string]column{
	"timestamp":          colTimestamp,
	"nama supplier":      colSupplier,
	"supplier":           colSupplier,
	"cabang":             colBranch,
	"branch":             colBranch,
	"tanggal nota":       colDate,
	"date":               colDate,
	"no. faktur":         colInvoiceNumber,
	"no faktur":          colInvoiceNumber,
	"invoicenumber":      colInvoiceNumber,
	"invoice number":     colInvoiceNumber,
	"total":              colTotal,
	"keterangan":         colDescription,
	"description":        colDescription,
	"status":             colStatus,
	"paid":               colStatus,
	"tanggal pembayaran": colPaidDate,
	"paiddate":           colPaidDate,
	"paid date":          colPaidDate,
}

var requiredColumns = map[column]string{
	colSupplier:      "supplier",
	colBranch:        "branch",
	colDate:          "date",
	colInvoiceNumber: "invoiceNumber",
	colTotal:         "total",
}

type Options struct {
	DryRun         bool
	SkipDuplicates bool
	BatchSize      int
}

// RowError reports a rejected row by its line number in the file.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type Result struct {
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors"`
	DryRun   bool       `json:"dryRun"`
}

func (r *Result) fail(row int, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RowError{Row: row, Reason: err.Error()})
}

type Importer struct {
	db       *gorm.DB
	resolver *matching.Resolver
	stats    *stats.Aggregator
	log      *zap.Logger
	metrics  *metrics.Metrics
}

type Option func(*Importer)

func WithMetrics(m *metrics.Metrics) Option {
	return func(im *Importer) { im.metrics = m }
}

func New(db *gorm.DB, resolver *matching.Resolver, agg *stats.Aggregator, log *zap.Logger, opts ...Option) *Importer {
	im := &Importer{
		db:       db,
		resolver: resolver,
		stats:    agg,
		log:      log.Named("importer"),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

type pending struct {
	row int
	inv models.Invoice
}

// ImportCSV parses r, validates each row like a form submission and inserts
// the accepted rows in one transaction. Rows bypass the per-write stats
// deltas; the snapshot is recomputed once afterwards.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	br := bufio.NewReader(r)
	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperror.Validation("file", "file is empty")
	}
	if err != nil {
		return nil, apperror.Validationf("file", "cannot read header: %v", err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	res := &Result{DryRun: opts.DryRun, Errors: []RowError{}}
	var rows []pending
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.fail(perr.StartLine, perr.Err)
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}
		inv, err := parseRow(record, cols)
		if err != nil {
			res.fail(line, err)
			continue
		}
		rows = append(rows, pending{row: line, inv: inv})
	}

	if opts.SkipDuplicates {
		if rows, err = im.dropDuplicates(ctx, rows, res); err != nil {
			return nil, err
		}
	}

	if opts.DryRun {
		if err := im.previewSuppliers(ctx, rows); err != nil {
			return nil, err
		}
		res.Imported = len(rows)
		return res, nil
	}

	if err := im.insert(ctx, rows, opts.BatchSize); err != nil {
		return nil, err
	}
	res.Imported = len(rows)
	im.metrics.AddMutations(metrics.OpImport, res.Imported)
	im.log.Info("csv import finished",
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)

	if res.Imported > 0 {
		if _, err := im.stats.Recompute(ctx); err != nil {
			return res, fmt.Errorf("recompute stats after import: %w", err)
		}
	}
	return res, nil
}

func (im *Importer) insert(ctx context.Context, rows []pending, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	return im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolver := im.resolver.WithTx(tx)
		names := map[string]string{}
		invs := make([]models.Invoice, len(rows))
		for i, p := range rows {
			key := strings.ToLower(p.inv.Supplier)
			name, ok := names[key]
			if !ok {
				s, err := resolver.Resolve(ctx, p.inv.Supplier)
				if err != nil {
					return fmt.Errorf("row %d: %w", p.row, err)
				}
				name = s.Name
				names[key] = name
			}
			invs[i] = p.inv
			invs[i].Supplier = name
		}
		return repository.NewInvoiceRepository(tx).CreateInBatches(ctx, invs, batchSize)
	})
}

// previewSuppliers applies name matching without creating suppliers.
func (im *Importer) previewSuppliers(ctx context.Context, rows []pending) error {
	for i := range rows {
		m, err := im.resolver.Best(ctx, rows[i].inv.Supplier)
		if err != nil {
			return err
		}
		if m != nil {
			rows[i].inv.Supplier = m.Supplier.Name
		}
	}
	return nil
}

// dropDuplicates removes rows whose invoice number is already stored or
// appeared earlier in the file.
func (im *Importer) dropDuplicates(ctx context.Context, rows []pending, res *Result) ([]pending, error) {
	repo := repository.NewInvoiceRepository(im.db)
	existing := map[string]bool{}
	for start := 0; start < len(rows); start += lookupChunk {
		end := min(start+lookupChunk, len(rows))
		nums := make([]string, 0, end-start)
		for _, p := range rows[start:end] {
			nums = append(nums, p.inv.InvoiceNumber)
		}
		found, err := repo.ExistingNumbers(ctx, nums)
		if err != nil {
			return nil, err
		}
		for n := range found {
			existing[n] = true
		}
	}

	kept := rows[:0]
	for _, p := range rows {
		if existing[p.inv.InvoiceNumber] {
			res.Skipped++
			continue
		}
		existing[p.inv.InvoiceNumber] = true
		kept = append(kept, p)
	}
	return kept, nil
}

func mapHeader(header []string) (map[column]int, error) {
	cols := make(map[column]int, numColumns)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if c, ok := headerAliases[key]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	for c, name := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, apperror.Validationf("file", "missing %s column", name)
		}
	}
	return cols, nil
}

func parseRow(record []string, cols map[column]int) (models.Invoice, error) {
	cell := func(c column) string {
		i, ok := cols[c]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	total, err := currency.Normalize(cell(colTotal))
	if err != nil {
		return models.Invoice{}, apperror.Validation("total", err.Error())
	}
	date, err := parseDate(cell(colDate))
	if err != nil {
		return models.Invoice{}, apperror.Validation("date", err.Error())
	}
	in := invoices.CreateInput{
		Supplier:      cell(colSupplier),
		Branch:        cell(colBranch),
		Date:          date,
		InvoiceNumber: cell(colInvoiceNumber),
		Total:         total,
		Description:   cell(colDescription),
	}
	branch, err := invoices.ValidateCreate(&in)
	if err != nil {
		return models.Invoice{}, err
	}

	paid, err := parseStatus(cell(colStatus))
	if err != nil {
		return models.Invoice{}, apperror.Validation("status", err.Error())
	}
	var paidDate *string
	if paid {
		pd := in.Date
		if raw := cell(colPaidDate); raw != "" {
			if pd, err = parseDate(raw); err != nil {
				return models.Invoice{}, apperror.Validation("paidDate", err.Error())
			}
		}
		paidDate = &pd
	}

	ts, ok, err := parseTimestamp(cell(colTimestamp))
	if err != nil {
		return models.Invoice{}, apperror.Validation("timestamp", err.Error())
	}
	if !ok {
		ts, _ = time.Parse(time.DateOnly, in.Date)
	}

	return models.Invoice{
		ID:            uuid.Must(uuid.NewV7()),
		Supplier:      in.Supplier,
		Branch:        branch,
		Date:          in.Date,
		InvoiceNumber: in.InvoiceNumber,
		Total:         in.Total,
		Description:   in.Description,
		Timestamp:     ts,
		Paid:          paid,
		PaidDate:      paidDate,
	}, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
