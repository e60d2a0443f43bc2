package qerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := New(KindTimeout, "too slow")
		if KindOf(err) != KindTimeout {
			t.Errorf("Expected TIMEOUT, got %s", KindOf(err))
		}
	})

	t.Run("wrapped error preserves kind", func(t *testing.T) {
		inner := Newf(KindScopeViolation, "table %q", "t_x")
		wrapped := fmt.Errorf("while validating: %w", inner)
		if KindOf(wrapped) != KindScopeViolation {
			t.Errorf("Expected SCOPE_VIOLATION through wrapping, got %s", KindOf(wrapped))
		}
	})

	t.Run("plain error has no kind", func(t *testing.T) {
		if KindOf(errors.New("boom")) != "" {
			t.Error("Expected empty kind for plain error")
		}
		if KindOf(nil) != "" {
			t.Error("Expected empty kind for nil")
		}
	})
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindGeneration, "model failed", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
	if !IsKind(err, KindGeneration) {
		t.Error("Expected IsKind to match")
	}
	if IsKind(err, KindTimeout) {
		t.Error("Expected IsKind to reject other kinds")
	}
}
