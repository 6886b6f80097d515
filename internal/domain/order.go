package domain

import "strings"

// SortOrder is the direction of the wish feed by timestamp.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ParseSortOrder accepts "asc"/"desc" (and the long forms), case-insensitive.
// An empty string yields Descending, newest first, like the public wall.
func ParseSortOrder(s string) (SortOrder, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descending", "newest":
		return Descending, true
	case "asc", "ascending", "oldest":
		return Ascending, true
	}
	return "", false
}

// Reverse returns the opposite direction.
func (o SortOrder) Reverse() SortOrder {
	if o == Ascending {
		return Descending
	}
	return Ascending
}

// Valid reports whether o is one of the two known directions.
func (o SortOrder) Valid() bool { return o == Ascending || o == Descending }

// SQL renders the direction as an ORDER BY keyword.
func (o SortOrder) SQL() string {
	if o == Ascending {
		return "ASC"
	}
	return "DESC"
}
