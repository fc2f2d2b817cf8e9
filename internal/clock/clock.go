// Package clock provides the time source used by every timer-driven
// component (presence heartbeat, sweeps, offline retry, rule debounce).
// Production code uses System; tests use a clockwork fake clock and advance
// time explicitly.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is an injectable time source. Both clockwork clocks satisfy it.
type Clock interface {
	// Now возвращает текущее время
	Now() time.Time

	// NewTicker создает тикер с заданным периодом
	NewTicker(d time.Duration) Ticker

	// AfterFunc вызывает f в отдельной горутине после истечения d
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker delivers ticks on Chan.
type Ticker = clockwork.Ticker

// Timer is a cancellable one-shot timer.
type Timer = clockwork.Timer

// Fake is a clock that only moves on Advance.
type Fake = clockwork.FakeClock

// System returns the wall clock.
func System() Clock {
	return clockwork.NewRealClock()
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return clockwork.NewFakeClockAt(start)
}
