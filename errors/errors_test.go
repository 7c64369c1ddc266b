package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"no connection", ErrNoConnection, true},
		{"script timeout", ErrScriptTimeout, true},
		{"queue full", ErrQueueFull, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"invalid data", ErrInvalidData, false},
		{"script compile", ErrScriptCompile, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network connection failed"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"invalid data", ErrInvalidData, false},
		{"script runtime", ErrScriptRuntime, false},
		{"fatal in message", fmt.Errorf("fatal system error occurred"), true},
		{"panic in message", fmt.Errorf("panic: system failure"), true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid data", ErrInvalidData, true},
		{"parsing failed", ErrParsingFailed, true},
		{"script compile", ErrScriptCompile, true},
		{"script runtime", ErrScriptRuntime, true},
		{"incomplete destinations", ErrIncompleteDestinations, true},
		{"no source message", ErrNoSourceMessage, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsScriptError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"script compile", ErrScriptCompile, true},
		{"script runtime", ErrScriptRuntime, true},
		{"script timeout", ErrScriptTimeout, true},
		{"wrapped script runtime", Wrap(ErrScriptRuntime, "Executor", "Process", "rule 2"), true},
		{"classified script timeout", WrapTransient(ErrScriptTimeout, "Sandbox", "Run", "interrupt"), true},
		{"invalid data", ErrInvalidData, false},
		{"connection lost", ErrConnectionLost, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsScriptError(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil error", nil, ErrorTransient},
		{"transient error", ErrConnectionTimeout, ErrorTransient},
		{"invalid error", ErrInvalidData, ErrorInvalid},
		{"fatal error", ErrInvalidConfig, ErrorFatal},
		{"script compile is invalid", ErrScriptCompile, ErrorInvalid},
		{"script timeout is transient", ErrScriptTimeout, ErrorTransient},
		{"unknown error defaults transient", fmt.Errorf("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Classify(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v", test.expected, result)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	baseErr := fmt.Errorf("base error")

	wrapped := Wrap(baseErr, "TestComponent", "TestMethod", "test action")
	if wrapped == nil {
		t.Fatal("expected wrapped error, got nil")
	}

	expected := "TestComponent.TestMethod: test action failed: base error"
	if wrapped.Error() != expected {
		t.Errorf("expected %q, got %q", expected, wrapped.Error())
	}

	if !errors.Is(wrapped, baseErr) {
		t.Error("wrapped error should unwrap to base error")
	}

	if Wrap(nil, "Component", "Method", "action") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWrapClassified(t *testing.T) {
	baseErr := fmt.Errorf("base error")

	tests := []struct {
		name     string
		wrapFn   func(error, string, string, string) error
		expected ErrorClass
	}{
		{"WrapTransient", WrapTransient, ErrorTransient},
		{"WrapInvalid", WrapInvalid, ErrorInvalid},
		{"WrapFatal", WrapFatal, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			wrapped := test.wrapFn(baseErr, "Component", "Method", "action")

			var ce *ClassifiedError
			if !errors.As(wrapped, &ce) {
				t.Fatal("expected ClassifiedError")
			}

			if ce.Class != test.expected {
				t.Errorf("expected class %v, got %v", test.expected, ce.Class)
			}

			if ce.Component != "Component" {
				t.Errorf("expected component preserved, got %q", ce.Component)
			}

			if !strings.Contains(wrapped.Error(), "action failed") {
				t.Errorf("expected standard wrap format, got %q", wrapped.Error())
			}

			if !errors.Is(wrapped, baseErr) {
				t.Error("classified error should unwrap to base error")
			}

			if test.wrapFn(nil, "Component", "Method", "action") != nil {
				t.Error("wrapping nil should return nil")
			}
		})
	}
}

func TestClassificationPreservedThroughChain(t *testing.T) {
	inner := WrapInvalid(ErrScriptCompile, "Sandbox", "Compile", "parse source")
	outer := Wrap(inner, "Executor", "Process", "rule 1")

	if !IsInvalid(outer) {
		t.Error("classification should survive plain wrapping")
	}
	if !errors.Is(outer, ErrScriptCompile) {
		t.Error("sentinel should survive the full chain")
	}
	if !IsScriptError(outer) {
		t.Error("script error detection should survive the full chain")
	}
}
