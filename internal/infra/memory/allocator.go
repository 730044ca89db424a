package memory

import (
	"context"
	"sync"
	"time"
)

// DailyIDAllocator issues per-calendar-day ticket numbers from process
// memory. It backs single-instance deployments without PostgreSQL and the
// test suite; numbers reset on restart.
type DailyIDAllocator struct {
	mu       sync.Mutex
	counters map[string]int
}

func NewDailyIDAllocator() *DailyIDAllocator {
	return &DailyIDAllocator{counters: make(map[string]int)}
}

func (a *DailyIDAllocator) Next(_ context.Context, day time.Time) (int, error) {
	key := day.UTC().Format("2006-01-02")

	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[key]++
	return a.counters[key], nil
}
