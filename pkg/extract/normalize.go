package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"20060102",
}

// parseDate accepts the date spellings that show up on Vietnamese invoices.
// Day comes before month in every slash or dash format.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseAmount reads a money value in either Vietnamese (1.234.567,89) or
// English (1,234,567.89) notation, with or without a currency marker.
func parseAmount(s string) (float64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, word := range []string{"VND", "VNĐ", "USD", "Đ", "D", "₫"} {
		s = strings.TrimSuffix(strings.TrimSpace(s), word)
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both present, the rightmost one is the decimal separator.
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ',')
	case lastDot >= 0:
		s = normalizeSingleSeparator(s, '.')
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized amount: %w", err)
	}
	if neg {
		value = -value
	}
	return value, nil
}

// normalizeSingleSeparator decides whether the only separator in a number is
// a thousands mark or a decimal point. Groups of exactly three digits after
// every separator mean thousands, anything else means decimal.
func normalizeSingleSeparator(s string, sep byte) string {
	parts := strings.Split(s, string(sep))
	thousands := len(parts) > 1
	for _, part := range parts[1:] {
		if len(part) != 3 {
			thousands = false
			break
		}
	}
	if thousands {
		return strings.Join(parts, "")
	}
	if len(parts) == 2 {
		return parts[0] + "." + parts[1]
	}
	return strings.Join(parts, "")
}

// parseTaxRate normalizes a VAT rate to a fraction. "8%", "8" and "0.08"
// all become 0.08. Exempt markers map to zero.
func parseTaxRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	if upper == "" || upper == "KCT" || strings.Contains(upper, "KHONG CHIU THUE") {
		return 0, nil
	}

	s = strings.TrimSuffix(s, "%")
	value, err := parseAmount(s)
	if err != nil {
		return 0, fmt.Errorf("unrecognized tax rate: %w", err)
	}
	if value > 1 {
		value = value / 100
	}
	return value, nil
}
