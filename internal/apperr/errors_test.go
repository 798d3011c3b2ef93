package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfSurvivesWrapping(t *testing.T) {
	base := New(PreconditionFailed, "journey %s is terminal", "j-1")
	wrapped := fmt.Errorf("replace truck: %w", base)

	require.Equal(t, PreconditionFailed, KindOf(wrapped))
	require.True(t, Is(wrapped, PreconditionFailed))
	require.False(t, Is(wrapped, Validation))
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, Internal, KindOf(errors.New("boom")))
	require.Equal(t, Kind(""), KindOf(nil))
	require.False(t, Is(nil, Internal))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(Storage, cause, "update journey")

	require.ErrorIs(t, err, cause)
	require.Equal(t, "update journey: connection reset", err.Error())
}
