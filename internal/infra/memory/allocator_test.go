package memory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestDailyIDAllocatorSequential(t *testing.T) {
	a := NewDailyIDAllocator()
	day := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	for want := 1; want <= 5; want++ {
		got, err := a.Next(context.Background(), day)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Fatalf("Next = %d, want %d", got, want)
		}
	}
}

func TestDailyIDAllocatorResetsPerDay(t *testing.T) {
	a := NewDailyIDAllocator()
	day1 := time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	if n, _ := a.Next(context.Background(), day1); n != 1 {
		t.Fatalf("day1 first = %d, want 1", n)
	}
	if n, _ := a.Next(context.Background(), day2); n != 1 {
		t.Fatalf("day2 first = %d, want 1", n)
	}
	if n, _ := a.Next(context.Background(), day1); n != 2 {
		t.Fatalf("day1 second = %d, want 2", n)
	}
}

// Concurrent callers on the same date must each get a distinct number and
// together cover exactly 1..N.
func TestDailyIDAllocatorConcurrent(t *testing.T) {
	const n = 100
	a := NewDailyIDAllocator()
	day := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	results := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := a.Next(context.Background(), day)
			if err != nil {
				t.Errorf("Next: %v", err)
				return
			}
			results[i] = got
		}(i)
	}
	wg.Wait()

	sort.Ints(results)
	for i, got := range results {
		if got != i+1 {
			t.Fatalf("issued numbers are not exactly 1..%d: position %d holds %d", n, i, got)
		}
	}
}
