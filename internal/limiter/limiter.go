// Package limiter provides global resource limiters for upstream API calls
// and external converter processes.
package limiter

import (
	"context"

	"language-toolkit/internal/config"
)

// Limiter is a counting semaphore.
type Limiter struct {
	slots chan struct{}
}

// New returns a limiter admitting at most n concurrent holders.
func New(n int) *Limiter {
	if n <= 0 {
		n = 1
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	<-l.slots
}

// InUse returns the number of held slots.
func (l *Limiter) InUse() int {
	return len(l.slots)
}

// Capacity returns the maximum number of concurrent holders.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

// providerCalls limits in-flight upstream API calls across ALL tasks, so a
// burst of submissions cannot open an unbounded number of connections to
// one provider. Capacity is greater than one; unrelated tasks still overlap.
var providerCalls = New(config.MaxConcurrentProviderCalls)

// conversions limits concurrent external converter processes.
var conversions = New(config.MaxConcurrentConversions)

// AcquireProviderSlot blocks until an upstream call slot is available.
// Call ReleaseProviderSlot when the call returns (use defer).
func AcquireProviderSlot(ctx context.Context) error {
	return providerCalls.Acquire(ctx)
}

// ReleaseProviderSlot releases an upstream call slot.
func ReleaseProviderSlot() {
	providerCalls.Release()
}

// AcquireConversionSlot blocks until a converter slot is available.
func AcquireConversionSlot(ctx context.Context) error {
	return conversions.Acquire(ctx)
}

// ReleaseConversionSlot releases a converter slot.
func ReleaseConversionSlot() {
	conversions.Release()
}
