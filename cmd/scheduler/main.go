package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/college-scheduler/internal/application"
	"github.com/example/college-scheduler/internal/civil"
	"github.com/example/college-scheduler/internal/config"
	"github.com/example/college-scheduler/internal/delayqueue"
	"github.com/example/college-scheduler/internal/logging"
	"github.com/example/college-scheduler/internal/persistence/sqlite"
)

func main() {
	logger := logging.NewLogger(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("failed to resolve civil timezone", "error", err)
		os.Exit(1)
	}
	cal := civil.NewCalendar(loc)

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	cataloguePath := strings.TrimSpace(os.Getenv("SCHEDULER_TIMETABLES_PATH"))
	if cataloguePath == "" {
		cataloguePath = "timetables.json"
	}
	catalogue := newFileTemplateStore(cataloguePath)

	idGenerator := uuid.NewString
	now := time.Now

	weeks := newWeeklySessionAdapter(storage)
	classes := newSessionClassAdapter(storage)
	bus := &logBus{logger: logger}

	// The queue and the reminder scheduler reference each other: the queue
	// dispatches fires into the scheduler, the scheduler places triggers on
	// the queue. The handler closure breaks the construction cycle.
	var reminderScheduler *application.ReminderScheduler
	queue := delayqueue.New(func(ctx context.Context, key string, payload any) error {
		return reminderScheduler.HandleTrigger(ctx, key, payload)
	}, delayqueue.Options{
		MaxRetries: cfg.QueueRetries,
		RetryDelay: cfg.QueueRetryDelay,
		Logger:     logger,
	})
	defer queue.Close()
	reminderScheduler = application.NewReminderScheduler(queue, classes, weeks, emptyDirectory{}, bus, cal, cfg.ReminderOffsets, now, logger)

	materializer := application.NewMaterializer(weeks, classes, catalogue, catalogue, reminderScheduler, cal, idGenerator, now, logger)
	changeManager := application.NewChangeManager(weeks, classes, noAttendance{}, catalogue, materializer, reminderScheduler, bus, noopCache{}, cal, idGenerator, now, logger)
	_ = changeManager // driven by the surrounding platform's request path

	runCtx := logging.ContextWithLogger(ctx, logger)

	go generationLoop(runCtx, logger, materializer, cfg.GenerationInterval, now)
	go briefingLoop(runCtx, logger, reminderScheduler, cal, cfg.BriefingTime, now)

	logger.Info("scheduler started",
		"dsn", cfg.SQLiteDSN,
		"timezone", cfg.TimezoneOffset,
		"reminder_offsets", cfg.ReminderOffsets,
		"generation_interval", cfg.GenerationInterval.String())

	<-ctx.Done()
	logger.Info("scheduler stopping")
}

// generationLoop materializes the current week immediately and then on every
// interval tick. Idempotent generation makes the repeated runs safe.
func generationLoop(ctx context.Context, logger *slog.Logger, materializer *application.Materializer, interval time.Duration, now func() time.Time) {
	run := func() {
		result, err := materializer.GenerateForWeek(ctx, now())
		if err != nil {
			logger.Error("week generation failed", "error", err, "kind", application.ErrorKind(err))
			return
		}
		for _, problem := range result.Problems {
			logger.Warn("timetable skipped during generation", "error", problem)
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// briefingLoop fires the daily briefing at the configured civil wall-clock
// time.
func briefingLoop(ctx context.Context, logger *slog.Logger, reminders *application.ReminderScheduler, cal *civil.Calendar, briefingTime string, now func() time.Time) {
	for {
		wait := untilNext(cal, briefingTime, now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			if err := reminders.DailyBriefing(ctx, now()); err != nil {
				logger.Error("daily briefing failed", "error", err, "kind", application.ErrorKind(err))
			}
		}
	}
}

// untilNext computes the duration until the next occurrence of a civil
// wall-clock time.
func untilNext(cal *civil.Calendar, clock string, from time.Time) time.Duration {
	hour, minute, err := civil.ParseClock(clock)
	if err != nil {
		return time.Hour
	}
	local := from.In(cal.Location())
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, cal.Location())
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(local)
}
