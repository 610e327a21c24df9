package currency

import "strings"

// FormatIDR renders a for people: "Rp 1.234.567,89".
func FormatIDR(a Amount) string {
	s := a.Abs().String()
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if a.IsNegative() {
		b.WriteString("-")
	}
	b.WriteString("Rp ")
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// SearchDigits turns a search term that looks like money ("1.000.000", "2,5")
// into the form totals are stored in, so it can be matched against the
// textual rendering of the total column. ok is false for non-numeric terms.
func SearchDigits(term string) (digits string, ok bool) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", false
	}
	for _, r := range term {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return "", false
		}
	}
	switch {
	case multiDotDecimal.MatchString(term):
		last := strings.LastIndex(term, ".")
		return strings.ReplaceAll(term[:last], ".", "") + term[last:], true
	case strings.Contains(term, ","), thousandsOnly.MatchString(term):
		return indonesian(term), true
	default:
		return term, true
	}
}
