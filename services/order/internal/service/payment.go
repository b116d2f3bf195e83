package service

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

var ErrPaymentFailed = errors.New("payment failed")

// PaymentFunc is the seam for the payment step so tests can pin the outcome.
type PaymentFunc func(ctx context.Context, amount float64) error

// SimulatedPayment stands in for a real payment provider: up to 2s of
// latency and roughly a 90% success rate.
func SimulatedPayment() PaymentFunc {
	return func(ctx context.Context, amount float64) error {
		delay := time.Duration(rand.Int63n(int64(2 * time.Second)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if rand.Float64() < 0.1 {
			return ErrPaymentFailed
		}
		return nil
	}
}
