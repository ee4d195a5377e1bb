package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds_AreWrapFriendly(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", Validationf("notes must be at least %d characters", 10), ErrValidation},
		{"conflict", Conflictf("balance for user %s created concurrently", "u1"), ErrConflict},
		{"not found", NotFoundf("user %s not found", "u1"), ErrNotFound},
		{"persistence", Persistencef("insert failed: %v", errors.New("io")), ErrPersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, errors.Is(tt.err, tt.sentinel))

			// still detectable after another wrap layer
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
		})
	}
}

func TestKinds_AreDistinct(t *testing.T) {
	err := Validationf("amount must be non-zero")
	assert.False(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrPersistence))
}

func TestMessage_IdentifiesConstraint(t *testing.T) {
	err := Validationf("amount exceeds maximum of %d cents", 1_000_000)
	assert.Contains(t, err.Error(), "amount exceeds maximum of 1000000 cents")
}
