package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"helpdesk_bot/internal/domain/ticket"

	"github.com/sirupsen/logrus"
)

// StatsService builds the daily activity digest for the staff chat.
type StatsService struct {
	tickets ticket.Repository
	logger  *logrus.Entry
}

func NewStatsService(tickets ticket.Repository, logger *logrus.Entry) *StatsService {
	return &StatsService{tickets: tickets, logger: logger}
}

// DailyDigest renders the statistics for the calendar day containing `day`.
func (s *StatsService) DailyDigest(ctx context.Context, day time.Time) (string, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	stats, err := s.tickets.Stats(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("failed to collect daily statistics: %w", err)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Статистика за %s</b>\n\n", from.Format("02.01.2006")))
	b.WriteString(fmt.Sprintf("Создано заявок: %d\n", stats.Created))
	b.WriteString(fmt.Sprintf("Закрыто заявок: %d\n", stats.Closed))

	if len(stats.ByPriority) > 0 {
		b.WriteString("\nПо приоритетам:\n")
		for _, p := range []ticket.Priority{
			ticket.PriorityUrgent, ticket.PriorityHigh, ticket.PriorityNormal, ticket.PriorityLow,
		} {
			if n := stats.ByPriority[p]; n > 0 {
				b.WriteString(fmt.Sprintf("%s: %d\n", PriorityLabel(p), n))
			}
		}
	}

	if stats.AvgResponseMinutes.Valid {
		b.WriteString(fmt.Sprintf("\n⏱ Среднее время первого ответа: %.0f мин.\n", stats.AvgResponseMinutes.Float64))
	}
	if stats.AvgRating.Valid {
		b.WriteString(fmt.Sprintf("⭐ Средняя оценка: %.1f\n", stats.AvgRating.Float64))
	}

	s.logger.WithFields(logrus.Fields{
		"created": stats.Created,
		"closed":  stats.Closed,
	}).Info("Daily statistics collected")
	return strings.TrimRight(b.String(), "\n"), nil
}
