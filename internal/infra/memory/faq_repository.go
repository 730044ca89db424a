package memory

import (
	"context"
	"sync"

	"helpdesk_bot/internal/domain/faq"
)

// FAQRepository is an in-memory faq.Repository.
type FAQRepository struct {
	mu      sync.RWMutex
	entries []faq.Entry
}

func NewFAQRepository(entries []faq.Entry) *FAQRepository {
	return &FAQRepository{entries: append([]faq.Entry(nil), entries...)}
}

func (r *FAQRepository) List(_ context.Context) ([]faq.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]faq.Entry(nil), r.entries...), nil
}

// Replace swaps the stored entries, used by tests to simulate admin edits.
func (r *FAQRepository) Replace(entries []faq.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]faq.Entry(nil), entries...)
}
