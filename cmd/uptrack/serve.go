package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"uptrack/internal/api"
	"uptrack/internal/auth"
	"uptrack/internal/bot"
	"uptrack/internal/config"
	"uptrack/internal/events"
	"uptrack/internal/metrics"
	"uptrack/internal/notify"
	"uptrack/internal/repository"
	"uptrack/internal/service"
)

func serveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduler and Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	m := metrics.New()
	userRepo := repository.NewUserRepository(db)
	todoRepo := repository.NewTodoRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	notifiers, telegramBot, err := buildNotifiers(cfg, userRepo, log)
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nats, err := events.Connect(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := nats.Close(); err != nil {
				log.Warn().Err(err).Msg("close nats")
			}
		}()
		publisher = nats
	}

	dispatcher := notify.NewDispatcher(cfg.NotifyTimeout, log, m)
	tokens := auth.NewTokens(cfg.JWTSecret)

	todoSvc := service.NewTodoService(service.TodoServiceDeps{
		Todos:       todoRepo,
		Accounts:    userRepo,
		Notifier:    notifiers,
		Events:      publisher,
		Dispatcher:  dispatcher,
		Metrics:     m,
		FrontendURL: cfg.FrontendURL,
		Log:         log,
	})
	userSvc := service.NewUserService(userRepo, tokens, notifiers, dispatcher, cfg, log)
	messageSvc := service.NewMessageService(userRepo, messageRepo)
	digestSvc := service.NewDigestService(todoRepo, userRepo, notifiers, cfg.NotifyTimeout, cfg.FrontendURL, log)

	scheduler := service.NewSchedulerService(time.Local, log, m)
	if _, err := scheduler.ScheduleDaily("digest", cfg.DigestAt, func(ctx context.Context) error {
		_, err := digestSvc.SendDaily(ctx, time.Now())
		return err
	}); err != nil {
		return err
	}
	if cfg.TokenPurgeInterval > 0 {
		if _, err := scheduler.ScheduleInterval("purge-verification", cfg.TokenPurgeInterval, userSvc.PurgeExpiredVerification); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	if telegramBot != nil {
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("telegram bot stopped")
			}
		}()
	}

	server := api.NewServer(api.Deps{
		Todos:       todoSvc,
		Users:       userSvc,
		Messages:    messageSvc,
		Resolver:    auth.NewResolver(tokens, userRepo),
		Metrics:     m,
		Health:      pinger(db),
		FrontendURL: cfg.FrontendURL,
		Log:         log,
	})

	log.Info().Str("version", Version).Msg("uptrack started")
	err = server.Run(ctx, cfg.HTTPAddr)

	dispatcher.Wait()
	log.Info().Msg("shutdown complete")
	return err
}

// buildNotifiers fans out to email and, when configured, Telegram.
func buildNotifiers(cfg config.Config, chats bot.ChatLookup, log zerolog.Logger) (notify.Notifier, *bot.Bot, error) {
	var fanout notify.Fanout
	if cfg.SMTP.Enabled() {
		mailer, err := notify.NewMailer(cfg.SMTP)
		if err != nil {
			return nil, nil, err
		}
		fanout = append(fanout, mailer)
	} else {
		log.Warn().Msg("smtp not configured, email notifications are logged only")
		fanout = append(fanout, notify.NewNop(log))
	}

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken, chats, log)
		if err != nil {
			return nil, nil, err
		}
		telegramBot = b
		fanout = append(fanout, b)
	}
	return fanout, telegramBot, nil
}

func pinger(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
