package scheduler

import (
	"context"
	"time"

	"helpdesk_bot/internal/app"
	domainTelegram "helpdesk_bot/internal/domain/telegram"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// DigestScheduler runs the periodic background jobs: the end-of-day statistics
// digest posted to the staff chat and the FAQ cache refresh.
type DigestScheduler struct {
	cronEngine         *cron.Cron
	statsService       *app.StatsService
	faqService         *app.FAQService
	telegramClient     domainTelegram.Client
	staffChatID        int64
	logger             *logrus.Entry
	cronSpecDailyStats string
	cronSpecFAQRefresh string
}

func NewDigestScheduler(
	statsService *app.StatsService,
	faqService *app.FAQService,
	telegramClient domainTelegram.Client,
	staffChatID int64,
	logger *logrus.Entry,
	cronSpecDailyStats string, // e.g. "0 20 * * *"
	cronSpecFAQRefresh string, // e.g. "*/30 * * * *"
) *DigestScheduler {
	return &DigestScheduler{
		cronEngine:         cron.New(cron.WithLocation(time.Local)),
		statsService:       statsService,
		faqService:         faqService,
		telegramClient:     telegramClient,
		staffChatID:        staffChatID,
		logger:             logger,
		cronSpecDailyStats: cronSpecDailyStats,
		cronSpecFAQRefresh: cronSpecFAQRefresh,
	}
}

func (s *DigestScheduler) Start() {
	s.logger.Info("Starting digest scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecDailyStats, func() {
		s.logger.Info("Cron job triggered for daily statistics digest.")
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		s.sendDailyDigest(ctx)
	})
	if err != nil {
		s.logger.Fatalf("Could not add daily statistics cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecFAQRefresh, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.faqService.Refresh(ctx); err != nil {
			s.logger.Errorf("Error refreshing FAQ cache: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add FAQ refresh cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Digest scheduler started with jobs.")
}

func (s *DigestScheduler) sendDailyDigest(ctx context.Context) {
	digest, err := s.statsService.DailyDigest(ctx, time.Now())
	if err != nil {
		s.logger.Errorf("Error building daily statistics digest: %v", err)
		return
	}
	_, err = s.telegramClient.SendMessage(s.staffChatID, digest, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	if err != nil {
		s.logger.Errorf("Error sending daily statistics digest: %v", err)
		return
	}
	s.logger.Info("Daily statistics digest sent to staff chat.")
}

func (s *DigestScheduler) Stop() {
	s.logger.Info("Stopping digest scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Digest scheduler gracefully stopped.")
}
