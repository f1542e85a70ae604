package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestRecover_WithPanic tests the Recover function when a panic occurs
func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "predict_batch")
		panic("row index out of range")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "predict_batch" {
		t.Errorf("Expected operation 'predict_batch', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
	if want := "panic in predict_batch: row index out of range"; panicErr.Error() != want {
		t.Errorf("Expected error message '%s', got '%s'", want, panicErr.Error())
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("String() should include the stack trace")
	}
}

// TestRecover_WithoutPanic tests the Recover function when no panic occurs
func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "predict_batch")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

// TestRecover_WithExistingError tests that an existing error is kept in the chain
func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("decode failed")
	testFunc := func() (err error) {
		defer Recover(&err, "decode")
		err = original
		panic("unexpected")
	}

	err := testFunc()
	if !errors.Is(err, original) {
		t.Errorf("Expected original error in chain, got: %v", err)
	}
	if !strings.Contains(err.Error(), "panic in decode: unexpected") {
		t.Errorf("Unexpected message: %v", err)
	}
}

func TestSafeExecute(t *testing.T) {
	tests := []struct {
		name       string
		fn         func() error
		wantPanic  bool
		wantErrMsg string
	}{
		{
			name:       "string panic",
			fn:         func() error { panic("nil node") },
			wantPanic:  true,
			wantErrMsg: "panic in cli: nil node",
		},
		{
			name:       "error panic",
			fn:         func() error { panic(errors.New("bad stack")) },
			wantPanic:  true,
			wantErrMsg: "panic in cli: bad stack",
		},
		{
			name:       "plain error",
			fn:         func() error { return errors.New("plain") },
			wantErrMsg: "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("cli", tt.fn)
			if err == nil {
				t.Fatal("expected error")
			}
			var panicErr *PanicError
			if got := errors.As(err, &panicErr); got != tt.wantPanic {
				t.Errorf("PanicError = %v, want %v", got, tt.wantPanic)
			}
			if err.Error() != tt.wantErrMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantErrMsg)
			}
		})
	}
}
