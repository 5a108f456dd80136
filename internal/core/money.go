// Package core holds the domain model shared by review, analytics and storage.
//
// This file contains parsing and formatting of monetary amounts. Amounts are
// carried as int64 cents everywhere; floats appear only at display edges.
package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmountCents converts a decimal string to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. At most
// two fractional digits are allowed; a third digit is an error rather than
// being rounded away, so a reviewer typo never silently changes the amount.
// Negative values and signs are rejected; zero is accepted here and rejected
// later where a positive amount is mandatory.
//
// Examples:
//
//	ParseAmountCents("12.45") -> 1245, nil
//	ParseAmountCents("12,4")  -> 1240, nil
//	ParseAmountCents("12.455") -> 0, error
//	ParseAmountCents("abc")    -> 0, error
func ParseAmountCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.Join(ErrValidation, errors.New("empty amount"))
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, errors.Join(ErrValidation, errors.New("signed amount"))
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, errors.Join(ErrValidation, errors.New("malformed amount"))
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if intPart == "0" && fracPart == "" && len(parts) == 2 {
		return 0, errors.Join(ErrValidation, errors.New("malformed amount"))
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, errors.Join(ErrValidation, errors.New("non-numeric amount"))
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, errors.Join(ErrValidation, errors.New("non-numeric amount"))
		}
	}
	if len(fracPart) > 2 {
		return 0, errors.Join(ErrValidation, errors.New("more than two fractional digits"))
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, errors.Join(ErrValidation, errors.New("amount out of range"))
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, errors.Join(ErrValidation, errors.New("amount out of range"))
	}

	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
		}
	}
	return iv*100 + fracCents, nil
}

// FormatCents renders cents as a plain decimal string ("1245" -> "12.45").
func FormatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + twoDigits(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
