package currency

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseError reports money text that matches no recognized format or that
// denotes a negative or non-finite value.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Input, e.Reason)
}

var (
	rpPrefix        = regexp.MustCompile(`(?i)^rp\.?`)
	whitespace      = regexp.MustCompile(`\s+`)
	multiDotDecimal = regexp.MustCompile(`^\d+(\.\d{3})+\.\d{2}$`)
	dotDecimal      = regexp.MustCompile(`^\d+\.\d{2}$`)
	thousandsOnly   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	digitsOnly      = regexp.MustCompile(`^\d+$`)
	plainDecimal    = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// Normalize parses raw money text into an Amount. Formats are tried in order
// and the first match wins:
//
//	"4.118.000,00"      decimal comma                      -> 4118000.00
//	"56.489.562.78"     dotted thousands, 2-digit decimal  -> 56489562.78
//	"1234.56"           dot decimal                        -> 1234.56
//	"165.522"           dotted thousands only              -> 165522.00
//	"500000"            whole units                        -> 500000.00
//
// Anything else goes through a plain numeric parse. A leading "Rp" is
// stripped first, so "Rp 56.489.562,78" and "Rp 56.489.562.78" both give
// 56489562.78.
func Normalize(raw string) (Amount, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Zero, &ParseError{Input: raw, Reason: "empty"}
	}

	if rpPrefix.MatchString(s) {
		s = whitespace.ReplaceAllString(rpPrefix.ReplaceAllString(s, ""), "")
		if s == "" {
			return Zero, &ParseError{Input: raw, Reason: "empty"}
		}
	}

	var canonical string
	switch {
	case strings.Contains(s, ","):
		canonical = indonesian(s)
	case multiDotDecimal.MatchString(s):
		last := strings.LastIndex(s, ".")
		canonical = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	case dotDecimal.MatchString(s):
		canonical = s
	case thousandsOnly.MatchString(s):
		canonical = strings.ReplaceAll(s, ".", "")
	case digitsOnly.MatchString(s):
		canonical = s + ".00"
	default:
		return parseFallback(raw, s)
	}

	if strings.HasPrefix(canonical, "-") {
		return Zero, &ParseError{Input: raw, Reason: "negative amount"}
	}
	if !plainDecimal.MatchString(canonical) {
		return Zero, &ParseError{Input: raw, Reason: "unrecognized format"}
	}
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return Zero, &ParseError{Input: raw, Reason: "unrecognized format"}
	}
	return FromDecimal(d), nil
}

// NormalizeString returns the canonical two-digit decimal string for raw.
func NormalizeString(raw string) (string, error) {
	a, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

// indonesian treats dots as thousands separators and a comma as the decimal mark.
func indonesian(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
}

func parseFallback(raw, s string) (Amount, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		reason := "unrecognized format"
		if err == nil || strings.Contains(err.Error(), "range") {
			reason = "non-finite value"
		}
		return Zero, &ParseError{Input: raw, Reason: reason}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, &ParseError{Input: raw, Reason: "unrecognized format"}
	}
	if d.IsNegative() {
		return Zero, &ParseError{Input: raw, Reason: "negative amount"}
	}
	return FromDecimal(d), nil
}
