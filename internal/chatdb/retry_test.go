package chatdb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{name: "succeeds first time", errs: []error{nil}, wantCalls: 1},
		{name: "retries transient model errors", errs: []error{&ErrModelUnavailable{Msg: "busy"}, &ErrTimeout{Msg: "slow"}, nil}, wantCalls: 3},
		{name: "gives up after max attempts", errs: []error{&ErrQueryExecution{Msg: "1"}, &ErrQueryExecution{Msg: "2"}, &ErrQueryExecution{Msg: "3"}}, wantCalls: 3, wantErr: true},
		{name: "does not retry invalid input", errs: []error{&ErrInvalidInput{Msg: "bad"}}, wantCalls: 1, wantErr: true},
		{name: "does not retry untyped errors", errs: []error{errors.New("plain")}, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := withRetry(context.Background(), fastRetry, zap.NewNop(), func(context.Context) (int, error) {
				err := tt.errs[calls]
				calls++
				return calls, err
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, got)
		})
	}
}

func TestWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := withRetry(ctx, fastRetry, zap.NewNop(), func(context.Context) (int, error) {
		calls++
		return 0, nil
	})
	var cancelled *ErrCancelled
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, 0, calls)
}

func TestWithRetryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := RetryOptions{MaxAttempts: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}

	_, err := withRetry(ctx, opts, zap.NewNop(), func(context.Context) (int, error) {
		cancel()
		return 0, &ErrTimeout{Msg: "slow"}
	})
	var cancelled *ErrCancelled
	require.ErrorAs(t, err, &cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorTypes(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  error
		want string
	}{
		{&ErrQueryExecution{Msg: "select failed", Err: cause}, "query execution error: select failed: boom"},
		{&ErrInvalidInput{Msg: "query is required"}, "invalid input error: query is required"},
		{&ErrModelUnavailable{Msg: "no key", Err: cause}, "model unavailable: no key: boom"},
		{&ErrTimeout{Msg: "slow", Err: cause}, "timeout error: slow: boom"},
		{&ErrCancelled{Msg: "stop", Err: cause}, "operation cancelled: stop: boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
	assert.ErrorIs(t, &ErrQueryExecution{Msg: "x", Err: cause}, cause)
}

func TestErrorPredicates(t *testing.T) {
	wrapped := func(err error) error { return fmt.Errorf("handler: %w", err) }

	assert.True(t, IsInvalidInput(wrapped(&ErrInvalidInput{Msg: "x"})))
	assert.True(t, IsModelUnavailable(wrapped(&ErrModelUnavailable{Msg: "x"})))
	assert.True(t, IsQueryExecution(wrapped(&ErrQueryExecution{Msg: "x"})))
	assert.True(t, IsTimeout(wrapped(&ErrTimeout{Msg: "x"})))
	assert.True(t, IsTimeout(wrapped(&ErrCancelled{Msg: "x"})))

	plain := errors.New("x")
	assert.False(t, IsInvalidInput(plain))
	assert.False(t, IsModelUnavailable(plain))
	assert.False(t, IsQueryExecution(plain))
	assert.False(t, IsTimeout(plain))
}

func TestContextError(t *testing.T) {
	assert.NoError(t, contextError(context.Background(), "op"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var cancelled *ErrCancelled
	assert.ErrorAs(t, contextError(ctx, "op"), &cancelled)

	ctx, cancel = context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	var timeout *ErrTimeout
	assert.ErrorAs(t, contextError(ctx, "op"), &timeout)
}
