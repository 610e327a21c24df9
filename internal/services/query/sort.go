package query

import (
	"strings"

	"invoice-bookkeeping-backend/internal/apperror"
)

type Status string

const (
	StatusAll    Status = "all"
	StatusPaid   Status = "paid"
	StatusUnpaid Status = "unpaid"
)

// ParseStatus accepts all, paid or unpaid; empty means all.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusPaid:
		return StatusPaid, nil
	case StatusUnpaid:
		return StatusUnpaid, nil
	}
	return "", apperror.Validationf("status", "unknown status %q, expected all, paid or unpaid", s)
}

func (s Status) paidFilter() *bool {
	switch s {
	case StatusPaid:
		v := true
		return &v
	case StatusUnpaid:
		v := false
		return &v
	}
	return nil
}

type SortKey string

const (
	SortNewestSubmitted   SortKey = "newest-submitted"
	SortOldestSubmitted   SortKey = "oldest-submitted"
	SortNewestInvoiceDate SortKey = "newest-invoice-date"
	SortOldestInvoiceDate SortKey = "oldest-invoice-date"
	SortSupplierAsc       SortKey = "supplier-ascending"
	SortSupplierDesc      SortKey = "supplier-descending"
	SortPaidStatus        SortKey = "paid-status"
)

var sortAliases = map[string]SortKey{
	"timestamp-desc": SortNewestSubmitted,
	"timestamp-asc":  SortOldestSubmitted,
	"date-desc":      SortNewestInvoiceDate,
	"date-asc":       SortOldestInvoiceDate,
	"supplier-asc":   SortSupplierAsc,
	"supplier-desc":  SortSupplierDesc,
	"status":         SortPaidStatus,
}

// Every ordering ends with id ASC; ids are time-ordered, so ties fall back
// to insertion order.
var sortOrders = map[SortKey][]string{
	SortNewestSubmitted:   {"timestamp DESC", "id ASC"},
	SortOldestSubmitted:   {"timestamp ASC", "id ASC"},
	SortNewestInvoiceDate: {"date DESC", "id ASC"},
	SortOldestInvoiceDate: {"date ASC", "id ASC"},
	SortSupplierAsc:       {"LOWER(supplier) ASC", "id ASC"},
	SortSupplierDesc:      {"LOWER(supplier) DESC", "id ASC"},
	SortPaidStatus:        {"paid DESC", "id ASC"},
}

// ParseSort resolves a canonical key or alias; empty means newest-submitted.
func ParseSort(s string) (SortKey, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return SortNewestSubmitted, nil
	}
	if _, ok := sortOrders[SortKey(key)]; ok {
		return SortKey(key), nil
	}
	if canonical, ok := sortAliases[key]; ok {
		return canonical, nil
	}
	return "", apperror.Validationf("sort", "unknown sort key %q", s)
}

func (k SortKey) orderBy() []string {
	return sortOrders[k]
}
