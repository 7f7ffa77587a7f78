package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineError_Error(t *testing.T) {
	err := New(ErrCategoryBinding, CodeArityMismatch, "ran out of values")
	expected := "[BINDING:ARITY_MISMATCH] ran out of values"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestEngineError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] upload failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryDeclaration, CodeReadFailed, "read", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestEngineError_Is(t *testing.T) {
	err1 := New(ErrCategoryBinding, CodeMissingValue, "first")
	err2 := New(ErrCategoryBinding, CodeMissingValue, "second")
	err3 := New(ErrCategoryBinding, CodeArityMismatch, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		code     string
		fatal    bool
	}{
		{ErrCategoryBinding, CodeArityMismatch, true},
		{ErrCategoryBinding, CodeMissingValue, false},
		{ErrCategoryStorage, CodeUploadFailed, false},
		{ErrCategoryParse, CodeParseError, false},
		{ErrCategoryValidation, CodeInvalidConfig, false},
		{ErrCategoryExecution, CodeQueryFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsFatal(err) != tt.fatal {
			t.Errorf("%s:%s fatal=%v, want %v", tt.category, tt.code, IsFatal(err), tt.fatal)
		}
	}

	wrapped := fmt.Errorf("outer: %w", New(ErrCategoryBinding, CodeArityMismatch, "inner"))
	if !IsFatal(wrapped) {
		t.Error("IsFatal should see through wrapping")
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryParse, CodeParseError, "bad sql")
	if GetCategory(err) != ErrCategoryParse {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryParse)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-EngineError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryParse, CodeParseError, "bad sql")
	if GetCode(err) != CodeParseError {
		t.Errorf("got %q, want %q", GetCode(err), CodeParseError)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-EngineError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryBinding, CodeArityMismatch, "short queue")
	detailed := err.WithDetails(map[string]interface{}{"placeholders": 2})

	if detailed.Details["placeholders"] != 2 {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	v := NewValidationError(CodeInvalidConfig, "bad level")
	if v.Category != ErrCategoryValidation || v.Code != CodeInvalidConfig {
		t.Error("NewValidationError mismatch")
	}

	p := NewParseError(CodeParseError, "syntax error")
	if p.Category != ErrCategoryParse {
		t.Error("NewParseError mismatch")
	}

	d := NewDeclarationError(CodeMalformedSource, "bad file", cause)
	if d.Category != ErrCategoryDeclaration || !errors.Is(d, cause) {
		t.Error("NewDeclarationError mismatch")
	}

	b := NewBindingError(CodeArityMismatch, "short")
	if b.Category != ErrCategoryBinding || !b.Fatal {
		t.Error("NewBindingError mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	x := NewExecutionError(CodeQueryFailed, "no such table", cause)
	if x.Category != ErrCategoryExecution {
		t.Error("NewExecutionError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
