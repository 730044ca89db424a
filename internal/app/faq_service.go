package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"helpdesk_bot/internal/domain/faq"

	"github.com/sirupsen/logrus"
)

// FAQService keeps a process-wide in-memory copy of the FAQ table. The cache
// is explicit state with a Load/Refresh lifecycle; readers only ever see
// immutable snapshots.
type FAQService struct {
	repo   faq.Repository
	logger *logrus.Entry

	mu      sync.RWMutex
	entries []faq.Entry
}

func NewFAQService(repo faq.Repository, logger *logrus.Entry) *FAQService {
	return &FAQService{repo: repo, logger: logger}
}

// Load populates the cache from the store. Called once at startup and again
// by Refresh.
func (s *FAQService) Load(ctx context.Context) error {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load FAQ entries: %w", err)
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	s.logger.WithField("count", len(entries)).Info("FAQ cache loaded")
	return nil
}

// Refresh reloads the cache from the store.
func (s *FAQService) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// Snapshot returns a copy of the cached entries.
func (s *FAQService) Snapshot() []faq.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]faq.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Match returns the first entry whose trigger word occurs in the text,
// case-insensitively.
func (s *FAQService) Match(text string) (faq.Entry, bool) {
	lower := strings.ToLower(text)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if strings.Contains(lower, strings.ToLower(e.TriggerWord)) {
			return e, true
		}
	}
	return faq.Entry{}, false
}
