package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	transport := &Error{Status: 0, cause: errors.New("connection refused")}
	if !transport.Temporary() {
		t.Fatal("transport failures are temporary")
	}
	if !IsTemporary(fmt.Errorf("placing order: %w", transport)) {
		t.Fatal("IsTemporary must see through wrapping")
	}

	unavailable := &Error{Status: http.StatusServiceUnavailable, Code: "unavailable"}
	if !unavailable.Temporary() || !IsTemporary(unavailable) {
		t.Fatal("5xx responses are temporary")
	}

	conflict := &Error{Status: http.StatusConflict, Code: "email_taken"}
	if !conflict.IsConflict() {
		t.Fatal("409 must report conflict")
	}
	if conflict.Temporary() || IsTemporary(conflict) {
		t.Fatal("client errors are not temporary")
	}

	if IsTemporary(errors.New("not an api error")) {
		t.Fatal("foreign errors are not temporary")
	}
}
