package telegram

import (
	"testing"
	"time"
)

func TestPendingCategoriesTakeConsumes(t *testing.T) {
	p := &pendingCategories{m: make(map[int64]pendingCategory)}
	p.set(1, "IT")

	got, ok := p.take(1)
	if !ok || got != "IT" {
		t.Fatalf("take = (%q, %v), want (IT, true)", got, ok)
	}
	if _, ok := p.take(1); ok {
		t.Fatal("second take must find nothing")
	}
}

func TestPendingCategoriesExpire(t *testing.T) {
	p := &pendingCategories{m: make(map[int64]pendingCategory)}
	p.m[1] = pendingCategory{category: "IT", pickedAt: time.Now().Add(-pendingCategoryTTL - time.Minute)}

	if got, ok := p.take(1); ok {
		t.Fatalf("expired pick must not be returned, got %q", got)
	}
	if len(p.m) != 0 {
		t.Fatal("expired entry must be removed on take")
	}
}

func TestPendingCategoriesSetSweepsExpired(t *testing.T) {
	p := &pendingCategories{m: make(map[int64]pendingCategory)}
	p.m[1] = pendingCategory{category: "IT", pickedAt: time.Now().Add(-pendingCategoryTTL - time.Minute)}
	p.m[2] = pendingCategory{category: "Учёба", pickedAt: time.Now()}

	p.set(3, "Общежитие")
	if _, stale := p.m[1]; stale {
		t.Error("set must sweep expired entries")
	}
	if len(p.m) != 2 {
		t.Errorf("map size = %d, want 2", len(p.m))
	}
}

func TestPendingCategoriesClear(t *testing.T) {
	p := &pendingCategories{m: make(map[int64]pendingCategory)}
	p.set(1, "IT")
	p.clear(1)
	if _, ok := p.take(1); ok {
		t.Fatal("cleared pick must not be returned")
	}
}
