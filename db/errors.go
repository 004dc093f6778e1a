package db

import (
	"strings"

	"github.com/teranos/punchclock/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database,
// typically when the daemon shuts down while a sync cycle is still running.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// Raw driver errors are matched by message since they cannot be wrapped at the source.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
