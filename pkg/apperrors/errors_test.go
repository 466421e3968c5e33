package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringer string

func (s stringer) String() string { return string(s) }

func TestError_Message(t *testing.T) {
	err := Validation("prescription", "duration_days", "must be positive, got %d", 0)
	assert.Equal(t, "VALIDATION: prescription.duration_days: must be positive, got 0", err.Error())

	wrapped := Internal("failed to load visit", fmt.Errorf("connection reset"))
	assert.Equal(t, "INTERNAL: failed to load visit: connection reset", wrapped.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{Validation("bill", "amount_total", "negative"), KindValidation},
		{NotFound("visit", "VIS-1"), KindNotFound},
		{Conflict("doctor", "referenced by %d visits", 2), KindReferentialConflict},
		{InvalidTransition("visit", stringer("completed"), stringer("checked-in")), KindInvalidTransition},
		{Duplicate("user", "username", "alice"), KindUniquenessConflict},
		{errors.New("boom"), KindInternal},
		{fmt.Errorf("delete visit: %w", Conflict("visit", "billed")), KindReferentialConflict},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, KindOf(tt.err), tt.err.Error())
	}
}

func TestErrorsIs_Sentinels(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("patient", "PAT-1"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.True(t, IsNotFound(err))
}

func TestAs_WrapsForeignErrors(t *testing.T) {
	e := As(errors.New("duplicate key value violates unique constraint"))
	require.NotNil(t, e)
	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, "internal error", e.Message)

	orig := Duplicate("doctor", "license_number", "LIC-001")
	assert.Same(t, orig, As(fmt.Errorf("ctx: %w", orig)))
}

func TestInvalidTransition_Fields(t *testing.T) {
	err := InvalidTransition("bill", stringer("Paid"), stringer("Pending"))
	assert.Equal(t, "status", err.Field)
	assert.Equal(t, "cannot transition from Paid to Pending", err.Message)
}
