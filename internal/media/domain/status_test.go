package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{Pending, Committed, true},
		{Pending, Failed, true},
		{Committed, Failed, false},
		{Committed, Pending, false},
		{Failed, Committed, false},
		{Failed, Pending, false},
		{"bogus", Committed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestValidateTransition(t *testing.T) {
	require.NoError(t, ValidateTransition(Committed, Committed))
	require.NoError(t, ValidateTransition(Pending, Committed))

	err := ValidateTransition(Committed, Failed)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Contains(t, err.Error(), "committed -> failed")
}
