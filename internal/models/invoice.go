package models

import (
	"time"

	"invoice-bookkeeping-backend/internal/currency"

	"github.com/google/uuid"
)

const (
	MaxSupplierLen      = 255
	MaxInvoiceNumberLen = 100
	MaxDescriptionLen   = 1000
)

// Invoice is one submitted supplier invoice. Date and PaidDate are calendar
// dates in YYYY-MM-DD form; PaidDate is non-nil exactly when Paid is true.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Supplier      string          `gorm:"size:255;not null;index" json:"supplier"`
	Branch        Branch          `gorm:"size:32;not null;index" json:"branch"`
	Date          string          `gorm:"type:varchar(10);not null;index" json:"date"`
	InvoiceNumber string          `gorm:"size:100;not null;index" json:"invoiceNumber"`
	Total         currency.Amount `gorm:"type:numeric(20,2);not null" json:"total"`
	Description   string          `gorm:"size:1000" json:"description"`
	Timestamp     time.Time       `gorm:"not null;index" json:"timestamp"`
	Paid          bool            `gorm:"not null;index" json:"paid"`
	PaidDate      *string         `gorm:"type:varchar(10)" json:"paidDate"`
}

const dateLayout = "2006-01-02"

// IsISODate reports whether s is a real calendar date written as YYYY-MM-DD.
func IsISODate(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
