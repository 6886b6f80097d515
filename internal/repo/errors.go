package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is gorm.ErrRecordNotFound under the repo's name.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate reports a unique-key collision: a second wish for one
	// email in strict mode, or a second replay record for one key.
	ErrDuplicate = errors.New("duplicate")
)

// uniqueViolations are the driver messages seen when translation is off or
// the driver does not implement it.
var uniqueViolations = []string{
	"unique constraint",         // sqlite: UNIQUE constraint failed
	"constraint failed: unique", // sqlite, older wording
	"duplicate key",             // postgres: duplicate key value violates unique constraint
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range uniqueViolations {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
