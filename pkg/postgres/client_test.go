package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"starting up", &pq.Error{Code: "57P03"}, true},
		{"bad password", &pq.Error{Code: "28P01"}, false},
		{"bad authorization", fmt.Errorf("ping: %w", &pq.Error{Code: "28000"}), false},
		{"unknown database", &pq.Error{Code: "3D000"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
