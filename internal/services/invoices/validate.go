package invoices

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/models"
)

// ValidateCreate trims in in place, checks every field and returns the
// canonical branch.
func ValidateCreate(in *CreateInput) (models.Branch, error) {
	in.Supplier = strings.TrimSpace(in.Supplier)
	in.InvoiceNumber = strings.TrimSpace(in.InvoiceNumber)
	in.Date = strings.TrimSpace(in.Date)
	in.Description = strings.TrimSpace(in.Description)

	if err := checkText("supplier", in.Supplier, models.MaxSupplierLen, true); err != nil {
		return "", err
	}
	branch, err := checkBranch(in.Branch)
	if err != nil {
		return "", err
	}
	if err := checkDate("date", in.Date); err != nil {
		return "", err
	}
	if err := checkText("invoiceNumber", in.InvoiceNumber, models.MaxInvoiceNumberLen, true); err != nil {
		return "", err
	}
	if err := checkTotal(in.Total); err != nil {
		return "", err
	}
	if err := checkText("description", in.Description, models.MaxDescriptionLen, false); err != nil {
		return "", err
	}
	return branch, nil
}

// validateUpdate checks supplied fields and canonicalizes them in place.
func validateUpdate(in *UpdateInput) error {
	if in.Supplier != nil {
		v := strings.TrimSpace(*in.Supplier)
		if err := checkText("supplier", v, models.MaxSupplierLen, true); err != nil {
			return err
		}
		in.Supplier = &v
	}
	if in.Branch != nil {
		b, err := checkBranch(*in.Branch)
		if err != nil {
			return err
		}
		v := string(b)
		in.Branch = &v
	}
	if in.Date != nil {
		v := strings.TrimSpace(*in.Date)
		if err := checkDate("date", v); err != nil {
			return err
		}
		in.Date = &v
	}
	if in.InvoiceNumber != nil {
		v := strings.TrimSpace(*in.InvoiceNumber)
		if err := checkText("invoiceNumber", v, models.MaxInvoiceNumberLen, true); err != nil {
			return err
		}
		in.InvoiceNumber = &v
	}
	if in.Total != nil {
		if err := checkTotal(*in.Total); err != nil {
			return err
		}
	}
	if in.Description != nil {
		v := strings.TrimSpace(*in.Description)
		if err := checkText("description", v, models.MaxDescriptionLen, false); err != nil {
			return err
		}
		in.Description = &v
	}
	if in.PaidDate != nil {
		v := strings.TrimSpace(*in.PaidDate)
		if v != "" {
			if err := checkDate("paidDate", v); err != nil {
				return err
			}
		}
		in.PaidDate = &v
	}
	if in.Paid != nil && !*in.Paid && in.PaidDate != nil && *in.PaidDate != "" {
		return apperror.Validation("paidDate", "cannot be set on an unpaid invoice")
	}
	return nil
}

func checkText(field, v string, max int, required bool) error {
	if required && v == "" {
		return apperror.Validation(field, "is required")
	}
	if utf8.RuneCountInString(v) > max {
		return apperror.Validationf(field, "must be at most %d characters", max)
	}
	return nil
}

func checkBranch(v string) (models.Branch, error) {
	b, err := models.ParseBranch(v)
	if err != nil {
		return "", apperror.Validationf("branch", "must be one of %s", branchList())
	}
	return b, nil
}

func checkDate(field, v string) error {
	if !models.IsISODate(v) {
		return apperror.Validation(field, "must be a date in YYYY-MM-DD form")
	}
	return nil
}

func checkTotal(total currency.Amount) error {
	if total.IsNegative() {
		return apperror.Validation("total", "cannot be negative")
	}
	if !total.FitsPrecision(currency.StoragePrecision) {
		return apperror.Validation("total", fmt.Sprintf("exceeds the maximum of %s", currency.MaxStorable))
	}
	return nil
}

func branchList() string {
	names := make([]string, len(models.Branches))
	for i, b := range models.Branches {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}
