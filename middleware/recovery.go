package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"cmc_performance/utils"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker opens after threshold consecutive failures and probes
// again with a single request once timeout has passed.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *gobreaker.CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			utils.Logger.Infow("Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})
}

// WithCircuitBreaker runs fn through cb.
func WithCircuitBreaker(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// IsBreakerOpen reports whether err was returned because cb rejected the call.
func IsBreakerOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}

// Recover runs next and turns a panic into an error carrying the stack.
func Recover(name string, next func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			utils.Logger.Errorw("Panic recovered",
				"stage", name,
				"error", r,
				"stack", string(stack))
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return next()
}
