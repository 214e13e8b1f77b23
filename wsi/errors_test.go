package wsi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{MissingParameterError{Name: "uuid"}, http.StatusBadRequest},
		{Invalidf("bad channel"), http.StatusUnprocessableEntity},
		{AuthorizationError{}, http.StatusForbidden},
		{OutOfRange("y", 5, 0, 4), http.StatusNotFound},
		{ErrTileNotFound, http.StatusNotFound},
		{NotReadyError{FilesetUUID: "abc"}, http.StatusConflict},
		{StorageError{Op: "read", Key: "k", Err: errors.New("down")}, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHTTPStatusWrapped(t *testing.T) {
	// Mapping sees through wrapping.
	err := fmt.Errorf("while rendering: %w", OutOfRange("x", 9, 0, 3))
	if got := HTTPStatus(err); got != http.StatusNotFound {
		t.Errorf("wrapped bounds error status = %d, want 404", got)
	}
	err = StorageError{Op: "read", Key: "k", Err: ErrTileNotFound}
	if got := HTTPStatus(err); got != http.StatusNotFound {
		t.Errorf("storage-wrapped missing tile status = %d, want 404", got)
	}
}

func TestOutOfRangeMessage(t *testing.T) {
	err := OutOfRange("y", 5, 0, 4)
	if err.Error() != "y=5 outside range (0-4)" {
		t.Errorf("message = %q, want %q", err.Error(), "y=5 outside range (0-4)")
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := StorageError{Op: "read", Key: "a/b.tif", Err: cause}
	if !errors.Is(err, cause) {
		t.Errorf("expected StorageError to unwrap to its cause")
	}
}
