package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestTaxonomy(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidationError("end %d before start %d", 1, 2), IsValidationError},
		{"conflict", NewConflictError("job %s already running", "j1"), IsConflictError},
		{"not found", NewNotFoundError("entry %s", "e1"), IsNotFoundError},
		{"auth", NewAuthError("token expired"), IsAuthError},
		{"sync", WrapSync(New("connection refused"), "push jobs"), IsSyncError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(Wrap(tt.err, "outer")), "classification must survive wrapping")
		})
	}
}

func TestTaxonomy_Disjoint(t *testing.T) {
	err := NewValidationError("bad input")
	assert.False(t, IsConflictError(err))
	assert.False(t, IsNotFoundError(err))
	assert.False(t, IsSyncError(err))
	assert.False(t, IsAuthError(err))
	assert.False(t, IsValidationError(nil))
}

func TestWrapSync_KeepsCause(t *testing.T) {
	cause := New("dial tcp: connection refused")
	err := WrapSync(cause, "push time entries")

	assert.True(t, IsSyncError(err))
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "push time entries")
	assert.Nil(t, WrapSync(nil, "noop"))
}

func TestWrapSync_PreservesAuth(t *testing.T) {
	err := WrapSync(NewAuthError("session revoked"), "pull jobs")

	assert.True(t, IsAuthError(err))
	assert.False(t, IsSyncError(err), "auth failures are reported as auth, not sync")
}

func TestNewAuthError_Hint(t *testing.T) {
	err := NewAuthError("token expired")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Contains(t, hints[0], "sign in")
}

func TestStackTrace(t *testing.T) {
	err := NewNotFoundError("job %s", "missing")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithHint(nil, "hint"))
}

func ExampleNewConflictError() {
	err := NewConflictError("job %s already has an active entry", "acme")
	fmt.Println(err)
	// Output: job acme already has an active entry: conflict
}
