package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"validation", Invalid("name", "is required"), false},
		{"not found", NotFound("inventory item", "x"), false},
		{"transient", &TransientStorageError{Op: "insert", Err: errors.New("busy")}, true},
		{"wrapped transient", fmt.Errorf("create item: %w", &TransientStorageError{Op: "insert", Err: errors.New("busy")}), true},
		{"timeout", &TimeoutError{After: time.Second}, true},
		{"validation wrapping transient", &ValidationError{Message: "bad", Err: &TransientStorageError{}}, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("delete category: %w", &ValidationError{Field: "isDefault", Message: "protected", Err: ErrDefaultCategory})
	if !errors.Is(err, ErrDefaultCategory) {
		t.Error("expected errors.Is to find ErrDefaultCategory")
	}
	if !IsValidation(err) {
		t.Error("expected IsValidation to be true")
	}
}

func TestMessage(t *testing.T) {
	if got := Message(Invalid("quantity", "must not be negative")); got != "quantity: must not be negative" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(&TransientStorageError{Op: "x", Err: errors.New("locked")}); got != "storage is busy, please try again" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}
}
