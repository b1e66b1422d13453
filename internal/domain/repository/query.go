package repository

import "strings"

// Order is the recorded_at ordering of a reading listing.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// IsValidOrder returns true if o is a supported ordering.
func IsValidOrder(o Order) bool {
	switch o {
	case OrderAsc, OrderDesc:
		return true
	default:
		return false
	}
}

// NormalizeOrder converts a raw string to a valid ordering (ascending by default).
func NormalizeOrder(s string) Order {
	o := Order(strings.ToLower(strings.TrimSpace(s)))
	if IsValidOrder(o) {
		return o
	}
	return OrderAsc
}

// ReadingQuery selects one user's readings.
type ReadingQuery struct {
	UserID int64
	// NameContains is a case-insensitive substring filter; empty matches all names.
	NameContains string
	Order        Order
	// Limit caps the number of rows; 0 means unlimited.
	Limit int
}

// MatchesName reports whether name passes the NameContains filter.
func (q ReadingQuery) MatchesName(name string) bool {
	if q.NameContains == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(q.NameContains))
}
