package importer

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"invoice-bookkeeping-backend/internal/models"
)

var months = map[string]time.Month{
	"januari": time.January, "january": time.January,
	"februari": time.February, "february": time.February,
	"maret": time.March, "march": time.March,
	"april": time.April,
	"mei": time.May, "may": time.May,
	"juni": time.June, "june": time.June,
	"juli": time.July, "july": time.July,
	"agustus": time.August, "august": time.August,
	"september": time.September,
	"oktober": time.October, "october": time.October,
	"november": time.November,
	"desember": time.December, "december": time.December,
}

var (
	slashDate      = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	longDate       = regexp.MustCompile(`^(\d{1,2})\s+(\p{L}+)\s+(\d{4})$`)
	slashTimestamp = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})\s+(\d{1,2}):(\d{1,2}):(\d{1,2})$`)
)

// parseDate accepts YYYY-MM-DD, D/M/YYYY and "17 Januari 2024".
func parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if models.IsISODate(s) {
		return s, nil
	}
	if m := slashDate.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		return civilDate(m[3], time.Month(month), m[1])
	}
	if m := longDate.FindStringSubmatch(s); m != nil {
		month, ok := months[strings.ToLower(m[2])]
		if !ok {
			return "", fmt.Errorf("unknown month %q", m[2])
		}
		return civilDate(m[3], month, m[1])
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

func civilDate(year string, month time.Month, day string) (string, error) {
	y, _ := strconv.Atoi(year)
	d, _ := strconv.Atoi(day)
	t := time.Date(y, month, d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != month || t.Day() != d {
		return "", fmt.Errorf("no such date %04d-%02d-%02d", y, month, d)
	}
	return models.FormatDate(t), nil
}

// parseTimestamp accepts "D/M/YYYY H:m:s" (read as UTC) and RFC 3339.
// ok is false for an empty cell.
func parseTimestamp(s string) (t time.Time, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	if m := slashTimestamp.FindStringSubmatch(s); m != nil {
		n := make([]int, 6)
		for i := range n {
			n[i], _ = strconv.Atoi(m[i+1])
		}
		t = time.Date(n[2], time.Month(n[1]), n[0], n[3], n[4], n[5], 0, time.UTC)
		if t.Day() != n[0] || int(t.Month()) != n[1] || t.Hour() != n[3] || t.Minute() != n[4] || t.Second() != n[5] {
			return time.Time{}, false, fmt.Errorf("no such time %q", s)
		}
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseStatus maps the status column onto paid. Empty means unpaid.
func parseStatus(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lunas", "sudah dibayar", "dibayar", "paid", "true", "ya", "yes", "1":
		return true, nil
	case "", "belum", "belum lunas", "belum dibayar", "unpaid", "false", "tidak", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized status %q", s)
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab in the
// first line without consuming input.
func sniffDelimiter(br *bufio.Reader) rune {
	sample, _ := br.Peek(4096)
	line := string(sample)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestCount := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
