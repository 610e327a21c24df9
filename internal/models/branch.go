package models

import (
	"fmt"
	"strings"
)

// Branch is one of the business locations an invoice is filed under.
type Branch string

const (
	BranchKuripan Branch = "Kuripan"
	BranchCempaka Branch = "Cempaka"
	BranchGatot   Branch = "Gatot"
)

var Branches = []Branch{BranchKuripan, BranchCempaka, BranchGatot}

// ParseBranch matches s case-insensitively and returns the canonical spelling.
func ParseBranch(s string) (Branch, error) {
	s = strings.TrimSpace(s)
	for _, b := range Branches {
		if strings.EqualFold(s, string(b)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown branch %q", s)
}

// Valid reports whether b is a canonical branch name.
func (b Branch) Valid() bool {
	for _, known := range Branches {
		if b == known {
			return true
		}
	}
	return false
}
