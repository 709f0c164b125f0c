package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIndexError_Error(t *testing.T) {
	err := New(ErrCategoryIndex, CodeCorruptionDetected, "digest mismatch")
	expected := "[INDEX:CORRUPTION_DETECTED] digest mismatch"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestIndexError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := Wrap(ErrCategorySource, CodeSourceBusy, "load failed", cause)
	expected := "[SOURCE:SOURCE_BUSY] load failed: database is locked"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestIndexError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategorySource, CodeQueryFailed, "query", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestIndexError_Is(t *testing.T) {
	err1 := New(ErrCategoryValidation, CodeOutOfRange, "first")
	err2 := New(ErrCategoryValidation, CodeOutOfRange, "second")
	err3 := New(ErrCategoryValidation, CodeInvalidRange, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIndexError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("insert: %w", NewValidationError(CodeOutOfRange, "position 9"))
	if !errors.Is(err, New(ErrCategoryValidation, CodeOutOfRange, "")) {
		t.Error("Is should match through fmt.Errorf wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategorySource, CodeSourceBusy, true},
		{ErrCategorySource, CodeOpenFailed, false},
		{ErrCategorySource, CodeQueryFailed, false},
		{ErrCategoryIndex, CodeCorruptionDetected, false},
		{ErrCategoryIndex, CodeBuildFailed, false},
		{ErrCategoryValidation, CodeOutOfRange, false},
		{ErrCategoryConfig, CodeInvalidConfig, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors are never retryable")
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryIndex, CodeBuildFailed, "build")
	if GetCategory(err) != ErrCategoryIndex {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryIndex)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-IndexError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategorySource, CodeNotFound, "no table")
	if GetCode(err) != CodeNotFound {
		t.Errorf("got %q, want %q", GetCode(err), CodeNotFound)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-IndexError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryIndex, CodeCorruptionDetected, "mismatch")
	detailed := err.WithDetails(map[string]interface{}{"property": "status"})

	if detailed.Details["property"] != "status" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	v := NewValidationError(CodeOutOfRange, "bad position")
	if v.Category != ErrCategoryValidation || v.Code != CodeOutOfRange {
		t.Error("NewValidationError mismatch")
	}

	i := NewIndexError(CodeCorruptionDetected, "mismatch")
	if i.Category != ErrCategoryIndex {
		t.Error("NewIndexError mismatch")
	}

	s := NewSourceError(CodeOpenFailed, "open", cause)
	if s.Category != ErrCategorySource || !errors.Is(s, cause) {
		t.Error("NewSourceError mismatch")
	}

	c := NewConfigError("bad threshold")
	if c.Category != ErrCategoryConfig || c.Code != CodeInvalidConfig {
		t.Error("NewConfigError mismatch")
	}
}
