package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"slot-auction/internal/domain"
)

func TestWithRetry(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		attempts  int
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{name: "first try", attempts: 3, wantCalls: 1},
		{name: "conflict then success", attempts: 3, failures: []error{domain.ErrTxConflict}, wantCalls: 2},
		{
			name:      "wrapped conflict retried",
			attempts:  3,
			failures:  []error{fmt.Errorf("store: %w", domain.ErrTxConflict)},
			wantCalls: 2,
		},
		{
			name:      "conflicts exhaust attempts",
			attempts:  2,
			failures:  []error{domain.ErrTxConflict, domain.ErrTxConflict, domain.ErrTxConflict},
			wantCalls: 2,
			wantErr:   domain.ErrTxConflict,
		},
		{name: "other error not retried", attempts: 3, failures: []error{boom}, wantCalls: 1, wantErr: boom},
		{name: "zero attempts runs once", attempts: 0, failures: []error{domain.ErrTxConflict}, wantCalls: 1, wantErr: domain.ErrTxConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			var conflicts []int
			err := withRetry(context.Background(), tt.attempts, func(attempt int) {
				conflicts = append(conflicts, attempt)
			}, func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			require.Equal(t, tt.wantCalls, calls)
			require.Len(t, conflicts, calls-1)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetry(ctx, 5, nil, func() error {
		calls++
		return domain.ErrTxConflict
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
