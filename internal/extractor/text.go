package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	dateMDY       = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)
	dateYMD       = regexp.MustCompile(`\b(\d{4})[/-](\d{1,2})[/-](\d{1,2})\b`)
	amountPattern = regexp.MustCompile(`\$?\s*(-?[\d,]+\.\d{2})`)
	receiptNumber = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:receipt|invoice|inv)\s*(?:no\.?|number|#)?[\s#:]*([A-Z0-9][A-Z0-9-]*\d[A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)(?:no|number)[\s.:#]+([A-Z0-9-]*\d[A-Z0-9-]*)`),
		regexp.MustCompile(`#\s*([A-Z0-9-]*\d[A-Z0-9-]*)`),
	}
)

// CleanText collapses whitespace runs and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// ExtractDate finds the first valid date in text and returns it as
// YYYY-MM-DD. Month-first order is assumed for slash or dash dates; two-digit
// years below 50 fall in the 2000s.
func ExtractDate(text string) (string, bool) {
	for _, m := range dateYMD.FindAllStringSubmatch(text, -1) {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	for _, m := range dateMDY.FindAllStringSubmatch(text, -1) {
		year := m[3]
		if len(year) == 2 {
			y, _ := strconv.Atoi(year)
			if y < 50 {
				y += 2000
			} else {
				y += 1900
			}
			year = strconv.Itoa(y)
		} else if len(year) != 4 {
			continue
		}
		if d, ok := makeDate(year, m[1], m[2]); ok {
			return d, true
		}
	}
	return "", false
}

func makeDate(y, m, d string) (string, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// ParseAmount extracts the first currency amount from s, normalized to two
// decimals.
func ParseAmount(s string) (string, bool) {
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', 2, 64), true
}

// ExtractReceiptNumber finds a receipt or invoice number.
func ExtractReceiptNumber(text string) (string, bool) {
	for _, re := range receiptNumber {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// labeledAmount returns the amount on the first line whose lowercase form
// starts with or contains one of the labels and is not excluded.
func labeledAmount(lines []string, labels []string, exclude []string) (string, bool) {
	for _, line := range lines {
		lower := strings.ToLower(line)
		if containsAny(lower, exclude) {
			continue
		}
		for _, l := range labels {
			idx := strings.Index(lower, l)
			if idx < 0 {
				continue
			}
			if amt, ok := ParseAmount(lower[idx+len(l):]); ok {
				return amt, true
			}
		}
	}
	return "", false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
