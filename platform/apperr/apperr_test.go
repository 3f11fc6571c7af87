package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetKindFindsWrappedError(t *testing.T) {
	base := NotFound("order not found").WithOp("reviews.GetConversation")
	wrapped := fmt.Errorf("handler: %w", base)

	if !Is(wrapped, KindNotFound) {
		t.Fatalf("expected wrapped error to carry KindNotFound")
	}
	if base.HTTPStatus() != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", base.HTTPStatus())
	}
	if base.Error() != "reviews.GetConversation: order not found" {
		t.Fatalf("unexpected message %q", base.Error())
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindInternal, "store unavailable", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
	if GetKind(cause) != KindUnknown {
		t.Fatalf("plain errors must report KindUnknown")
	}
}

func TestHTTPStatusByKind(t *testing.T) {
	cases := map[*Error]int{
		Validation("bad phone"):     http.StatusBadRequest,
		Conflict("order exists"):    http.StatusConflict,
		Unavailable("queue down"):   http.StatusServiceUnavailable,
		New(KindUnknown, "mystery"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := err.HTTPStatus(); got != want {
			t.Fatalf("%q: expected %d, got %d", err.Message, want, got)
		}
	}
}
