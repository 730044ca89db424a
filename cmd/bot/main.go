package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helpdesk_bot/internal/app"
	"helpdesk_bot/internal/infra/config"
	idb "helpdesk_bot/internal/infra/database"
	"helpdesk_bot/internal/infra/logger"
	"helpdesk_bot/internal/infra/metrics"
	"helpdesk_bot/internal/infra/openrouter"
	"helpdesk_bot/internal/infra/scheduler"
	"helpdesk_bot/internal/infra/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.Environment)
	mainLogger := logger.Log.WithField("component", "main")
	mainLogger.Infof("Configuration loaded. Environment: %s, StaffChatID: %d", cfg.Environment, cfg.StaffChatID)

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	// Repositories
	ticketRepo := idb.NewPostgresTicketRepository(db)
	userRepo := idb.NewPostgresUserRepository(db)
	faqRepo := idb.NewPostgresFAQRepository(db)
	allocator := idb.NewPostgresDailyIDAllocator(db)

	// Metrics
	registry := prometheus.NewRegistry()
	counters := metrics.New(registry)
	if cfg.MetricsAddr != "" {
		go func() {
			mainLogger.Infof("Metrics endpoint listening on %s", cfg.MetricsAddr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(registry))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				mainLogger.Errorf("Metrics endpoint stopped: %v", err)
			}
		}()
	}

	// Telegram bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Log.WithField("component", "telebot")
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			entry.Errorf("Telegram handler error: %v", err)
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("Could not create Telegram bot: %v", err)
	}
	tgClient := telegram.NewTelebotAdapter(bot)

	// Summarizer: disabled without an API key, the service degrades to its
	// placeholder text.
	var summarizer *openrouter.Client
	if cfg.OpenRouterAPIKey != "" {
		summarizer = openrouter.NewClient(cfg.OpenRouterAPIKey, cfg.LLMModelName)
		mainLogger.Infof("Summarizer enabled with model %s", cfg.LLMModelName)
	} else {
		summarizer = openrouter.NewClient("", cfg.LLMModelName)
		mainLogger.Warn("OPENROUTER_API_KEY is not set, ticket summaries will use the placeholder.")
	}

	// Services
	ticketService := app.NewTicketService(
		ticketRepo, userRepo, allocator, summarizer, tgClient,
		counters, app.DefaultAckPolicy, cfg.StaffChatID,
		logger.Log.WithField("component", "ticket_service"),
	)
	faqService := app.NewFAQService(faqRepo, logger.Log.WithField("component", "faq_service"))
	statsService := app.NewStatsService(ticketRepo, logger.Log.WithField("component", "stats_service"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := faqService.Load(ctx); err != nil {
		mainLogger.Warnf("Could not load FAQ cache: %v", err)
	}

	loc, err := time.LoadLocation(cfg.SupportTimezone)
	if err != nil {
		mainLogger.Warnf("Invalid SUPPORT_TIMEZONE %q, falling back to UTC: %v", cfg.SupportTimezone, err)
		loc = time.UTC
	}
	workingHours := app.WorkingHours{
		Enabled:   cfg.EnableWorkingHours,
		Location:  loc,
		StartHour: cfg.SupportHoursStart,
		EndHour:   cfg.SupportHoursEnd,
	}

	// Handlers
	telegram.RegisterUserHandlers(ctx, bot, ticketService, faqService, userRepo,
		workingHours, cfg.StaffChatID, logger.Log.WithField("component", "handlers"))
	telegram.RegisterStaffHandlers(ctx, bot, ticketService, statsService, faqService,
		ticketRepo, userRepo, tgClient, cfg.StaffChatID, cfg.AdminTelegramID,
		logger.Log.WithField("component", "handlers"))
	mainLogger.Info("Telegram handlers registered.")

	// Scheduler
	digestScheduler := scheduler.NewDigestScheduler(
		statsService, faqService, tgClient, cfg.StaffChatID,
		logger.Log.WithField("component", "scheduler"),
		cfg.CronSpecDailyStats, cfg.CronSpecFAQRefresh,
	)
	digestScheduler.Start()

	mainLogger.Info("Application setup complete. Bot and scheduler are starting...")
	go bot.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	cancel()
	digestScheduler.Stop()
	bot.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
