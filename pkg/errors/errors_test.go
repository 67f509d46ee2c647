package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		exit      int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, exit: 2, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, exit: 3, publicMsg: "resource not found"},
		{code: CodeEmptyBasket, status: http.StatusUnprocessableEntity, exit: 4, publicMsg: "basket has no items"},
		{code: CodeCapacity, status: http.StatusUnprocessableEntity, exit: 5, publicMsg: "basket item limit reached", detailsOK: true},
		{code: CodeUpstream, status: http.StatusBadGateway, exit: 6, publicMsg: "price source unavailable", retryable: true, detailsOK: true},
		{code: CodePersistence, status: http.StatusServiceUnavailable, exit: 7, publicMsg: "storage unavailable", retryable: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, exit: 8, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, exit: 8, publicMsg: "insufficient permissions"},
		{code: CodeConflict, status: http.StatusConflict, exit: 9, publicMsg: "conflict detected", retryable: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, exit: 10, publicMsg: "rate limit exceeded", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, exit: 1, publicMsg: "internal server error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.ExitCode != tt.exit {
			t.Fatalf("code %s expected exit code %d got %d", tt.code, tt.exit, meta.ExitCode)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "price must be positive")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "price must be positive" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "price"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodePersistence, cause, "append price point")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodePersistence {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if wrapped.Error() != "PERSISTENCE_ERROR: append price point: boom" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeEmptyBasket, "basket has no items"))
	if got := As(err); got == nil || got.Code() != CodeEmptyBasket {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestCodeHelpers(t *testing.T) {
	err := fmt.Errorf("calculate: %w", New(CodeNotFound, "basket not found"))
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("expected IsCode to match not found")
	}
	if IsCode(nil, CodeNotFound) {
		t.Fatalf("nil error should never match")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should map to internal")
	}
	if ExitCode(nil) != 0 {
		t.Fatalf("nil error should exit 0")
	}
	if ExitCode(err) != 3 {
		t.Fatalf("expected not found exit code 3, got %d", ExitCode(err))
	}
	if ExitCode(stdErrors.New("plain")) != 1 {
		t.Fatalf("untyped errors should exit 1")
	}
}
