package database

import (
	"context"
	"database/sql"
	"fmt"

	"helpdesk_bot/internal/domain/faq"
)

type PostgresFAQRepository struct {
	db *sql.DB
}

func NewPostgresFAQRepository(db *sql.DB) *PostgresFAQRepository {
	return &PostgresFAQRepository{db: db}
}

func (r *PostgresFAQRepository) List(ctx context.Context) ([]faq.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trigger_word, answer_text FROM faq ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing FAQ entries: %w", err)
	}
	defer rows.Close()

	entries := make([]faq.Entry, 0)
	for rows.Next() {
		var e faq.Entry
		if err := rows.Scan(&e.ID, &e.TriggerWord, &e.AnswerText); err != nil {
			return nil, fmt.Errorf("error scanning FAQ entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating FAQ entries: %w", err)
	}
	return entries, nil
}
