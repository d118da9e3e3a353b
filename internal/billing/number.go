// Package billing turns time entries into invoice numbers, totals and
// descriptions. Everything here is free of persistence.
package billing

import (
	"time"
)

const numberDateLayout = "20060102"

// GenerateNumber returns the invoice number for a client code and invoice
// date: the code followed by the date as YYYYMMDD. It does not check
// uniqueness; the invoices table rejects duplicates.
func GenerateNumber(code string, date time.Time) string {
	return code + date.Format(numberDateLayout)
}

// ExtractDate parses the trailing eight digits of an invoice number as a
// YYYYMMDD date.
func ExtractDate(number string) (time.Time, bool) {
	suffix, ok := dateSuffix(number)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(numberDateLayout, suffix)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExtractClientCode returns the invoice number with its trailing eight digit
// date removed. A number without such a suffix is returned unchanged. It
// returns false when nothing is left.
func ExtractClientCode(number string) (string, bool) {
	code := number
	if _, ok := dateSuffix(number); ok {
		code = number[:len(number)-len(numberDateLayout)]
	}
	if code == "" {
		return "", false
	}
	return code, true
}

func dateSuffix(number string) (string, bool) {
	n := len(numberDateLayout)
	if len(number) < n {
		return "", false
	}
	suffix := number[len(number)-n:]
	for i := 0; i < n; i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return "", false
		}
	}
	return suffix, true
}
