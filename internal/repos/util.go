package repos

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsUniqueViolation matches the duplicate-key failures gorm surfaces from
// both postgres and the sqlite test driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
