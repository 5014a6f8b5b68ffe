package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCatalogRendering(t *testing.T) {
	cases := map[Code]struct {
		status    int
		retryable bool
		details   bool
	}{
		CodeValidation:    {status: http.StatusBadRequest, details: true},
		CodeUnauthorized:  {status: http.StatusUnauthorized},
		CodeNotFound:      {status: http.StatusNotFound},
		CodeStateConflict: {status: http.StatusUnprocessableEntity, details: true},
		CodeIdempotency:   {status: http.StatusConflict, details: true},
		CodeRateLimit:     {status: http.StatusTooManyRequests},
		CodePayment:       {status: http.StatusPaymentRequired, retryable: true, details: true},
		CodeDependency:    {status: http.StatusServiceUnavailable, retryable: true, details: true},
	}
	for code, want := range cases {
		m := MetadataFor(code)
		if m.HTTPStatus != want.status || m.Retryable != want.retryable || m.DetailsAllowed != want.details {
			t.Fatalf("%s rendered as %+v", code, m)
		}
		if m.PublicMessage == "" {
			t.Fatalf("%s has no public message", code)
		}
	}

	if got := MetadataFor("NOT_A_CODE"); got != MetadataFor(CodeInternal) {
		t.Fatalf("unknown code should render as internal, got %+v", got)
	}
	if !MetadataFor(CodeDependency).ServerFault() || MetadataFor(CodePayment).ServerFault() {
		t.Fatalf("server fault must follow the 5xx boundary")
	}
}

func TestClientMessageHidesServerDetail(t *testing.T) {
	if got := New(CodePayment, "Your card was declined.").ClientMessage(); got != "Your card was declined." {
		t.Fatalf("payment message should reach the client, got %q", got)
	}
	if got := New(CodeNotFound, "").ClientMessage(); got != "resource not found" {
		t.Fatalf("empty message should fall back to public text, got %q", got)
	}
	if got := Wrap(CodeInternal, stdErrors.New("pq: relation missing"), "load cart").ClientMessage(); got != "internal server error" {
		t.Fatalf("internal message leaked: %q", got)
	}
	if got := New(CodeDependency, "redis timeout").ClientMessage(); got != "dependency unavailable" {
		t.Fatalf("dependency message leaked: %q", got)
	}
}

func TestWrapKeepsCauseInChain(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "reserve cart").WithDetails(map[string]any{"cart": "c1"})

	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("cause lost")
	}
	if wrapped.Error() != "CONFLICT: reserve cart: boom" {
		t.Fatalf("unexpected text %q", wrapped.Error())
	}
	if wrapped.Details() == nil {
		t.Fatalf("details dropped")
	}
	if New(CodeForbidden, "no").Error() != "FORBIDDEN: no" {
		t.Fatalf("unexpected text without cause")
	}
}

func TestAsFindsTypedErrorThroughFmt(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeForbidden, "no entry"))
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As missed wrapped error: %v", got)
	}
	if As(stdErrors.New("plain")) != nil || As(nil) != nil {
		t.Fatalf("As should return nil for untyped errors")
	}

	var nilTyped *Error
	if nilTyped.Code() != CodeInternal || nilTyped.Message() != "" || nilTyped.WithDetails(1) != nil {
		t.Fatalf("nil receiver should be safe")
	}
}

func TestEnsure(t *testing.T) {
	typed := New(CodeNotFound, "order")
	if Ensure(typed, CodeDependency, "load") != error(typed) {
		t.Fatalf("typed errors must pass through")
	}
	if Ensure(nil, CodeDependency, "load") != nil {
		t.Fatalf("nil must stay nil")
	}
	got := As(Ensure(stdErrors.New("conn reset"), CodeDependency, "load"))
	if got == nil || got.Code() != CodeDependency || got.Message() != "load" {
		t.Fatalf("untyped error not wrapped: %v", got)
	}
}
