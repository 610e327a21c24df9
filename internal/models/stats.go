package models

import (
	"time"

	"invoice-bookkeeping-backend/internal/currency"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StatsRowID is the primary key of the single invoice_stats row.
const StatsRowID = 1

// InvoiceStats is the cached aggregate over all invoices.
type InvoiceStats struct {
	ID             int             `gorm:"primaryKey;autoIncrement:false" json:"-"`
	TotalInvoices  int64           `gorm:"not null;default:0" json:"total"`
	PaidInvoices   int64           `gorm:"not null;default:0" json:"paid"`
	UnpaidInvoices int64           `gorm:"not null;default:0" json:"unpaid"`
	TotalValue     currency.Amount `gorm:"type:numeric(20,2);not null;default:0" json:"totalValue"`
	LastUpdated    time.Time       `gorm:"not null" json:"lastUpdated"`
}

func (InvoiceStats) TableName() string { return "invoice_stats" }

// StatsReconciliation records one reconciliation run and whatever drift it repaired.
type StatsReconciliation struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Drifted   bool           `gorm:"not null;index" json:"drifted"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&Supplier{}, &Invoice{}, &InvoiceStats{}, &StatsReconciliation{}}
}
