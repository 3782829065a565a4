// Package validation checks path parameters before they reach the service layer.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

// MaxOffsetDays bounds /offset requests in either direction.
const MaxOffsetDays = 30

var (
	// ErrInvalidDate is returned for anything that is not a real YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
	// ErrInvalidOffset is returned when the offset is not an integer.
	ErrInvalidOffset = errors.New("offset must be an integer number of days")
	// ErrOffsetOutOfRange is returned when |offset| exceeds MaxOffsetDays.
	ErrOffsetOutOfRange = errors.New("offset out of range")
)

// ValidateDate parses s as a calendar date. The result is midnight UTC on that date.
func ValidateDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ValidateOffset parses a signed day offset and enforces ±MaxOffsetDays.
func ValidateOffset(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
	if n < -MaxOffsetDays || n > MaxOffsetDays {
		return 0, fmt.Errorf("%w: %d (max ±%d)", ErrOffsetOutOfRange, n, MaxOffsetDays)
	}
	return n, nil
}
