package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not ready", ErrIndexNotReady, http.StatusServiceUnavailable},
		{"wrapped not ready", fmt.Errorf("search: %w", ErrIndexNotReady), http.StatusServiceUnavailable},
		{"incomplete", fmt.Errorf("build: %w", ErrIndexIncomplete), http.StatusServiceUnavailable},
		{"empty feedback", ErrEmptyFeedback, http.StatusBadRequest},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"missing doc", ErrDocumentNotFound, http.StatusNotFound},
		{"crawl running", ErrCrawlRunning, http.StatusConflict},
		{"app error", New(ErrInvalidInput, http.StatusTeapot, "custom"), http.StatusTeapot},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "k must be positive, got %d", -1)
	if err.Error() != "invalid input: k must be positive, got -1" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if err.Unwrap() != ErrInvalidInput {
		t.Error("expected Unwrap to return the sentinel")
	}
}
