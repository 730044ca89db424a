package faq

import "context"

// Entry is a trigger-word keyed canned answer. Messages containing the
// trigger word are answered automatically without creating a ticket.
type Entry struct {
	ID          int64
	TriggerWord string
	AnswerText  string
}

// Repository loads FAQ entries from the persistent store.
type Repository interface {
	List(ctx context.Context) ([]Entry, error)
}
