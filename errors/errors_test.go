package errors_test

import (
	"errors"
	"strings"
	"testing"

	commonErrors "github.com/Deepreo/reportsched/errors"
)

func TestExtendError(t *testing.T) {
	baseErr := errors.New("base error")

	t.Run("Wrap and Unwrap", func(t *testing.T) {
		infraErr := commonErrors.InfraError(baseErr)

		if !commonErrors.Is(baseErr, infraErr) {
			t.Error("Expected infraErr to be baseErr")
		}

		if !errors.Is(infraErr, baseErr) {
			t.Error("Expected infraErr to wrap baseErr")
		}

		unwrapped := errors.Unwrap(infraErr)
		if unwrapped != baseErr {
			t.Errorf("Expected unwrapped error to be baseErr, got %v", unwrapped)
		}
	})

	t.Run("Code and Metadata", func(t *testing.T) {
		err := commonErrors.DomainError(baseErr).
			WithCode("EXECUTION_MISMATCH").
			WithMetadata("executionId", "abc-123")

		if err.Code != "EXECUTION_MISMATCH" {
			t.Errorf("Expected code 'EXECUTION_MISMATCH', got %s", err.Code)
		}

		if val, ok := err.Metadata["executionId"]; !ok || val != "abc-123" {
			t.Errorf("Expected metadata executionId=abc-123, got %v", val)
		}

		expectedMsg := "[EXECUTION_MISMATCH] base error"
		if err.Error() != expectedMsg {
			t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
		}

		if commonErrors.GetCode(err) != "EXECUTION_MISMATCH" {
			t.Errorf("Expected GetCode to return the code, got %s", commonErrors.GetCode(err))
		}
	})

	t.Run("Field Metadata", func(t *testing.T) {
		err := commonErrors.ValidationError(errors.New("hour must be between 0 and 23")).
			WithField("scheduleConfig.hour")

		if err.Field() != "scheduleConfig.hour" {
			t.Errorf("Expected field 'scheduleConfig.hour', got %s", err.Field())
		}
	})

	t.Run("StackTrace", func(t *testing.T) {
		err := commonErrors.DomainError(baseErr)
		if err.StackTrace == "" {
			t.Error("Expected stack trace to be present")
		}
		// Stack trace should contain this file name
		if !strings.Contains(err.StackTrace, "errors_test.go") {
			t.Error("Expected stack trace to contain test file name")
		}
	})

	t.Run("Level Preserved On Rewrap", func(t *testing.T) {
		inner := commonErrors.ValidationError(baseErr).WithField("name")
		rewrapped := commonErrors.InfraError(inner)

		if commonErrors.GetLevel(rewrapped) != commonErrors.ERR_VALIDATION {
			t.Errorf("Expected validation level to survive rewrap, got %s", commonErrors.GetLevel(rewrapped))
		}
	})

	t.Run("Helper Functions", func(t *testing.T) {
		if !commonErrors.IsInfraError(commonErrors.InfraError(baseErr)) {
			t.Error("Expected IsInfraError to return true")
		}
		if !commonErrors.IsNotFoundError(commonErrors.NotFoundError(baseErr)) {
			t.Error("Expected IsNotFoundError to return true")
		}
		if !commonErrors.IsPermissionError(commonErrors.PermissionError(baseErr)) {
			t.Error("Expected IsPermissionError to return true")
		}
		if commonErrors.GetLevel(baseErr) != commonErrors.ERR_UNKNOWN {
			t.Error("Expected unclassified error to report unknown level")
		}
	})
}
