package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/advisor-booking-engine/internal/appointment"
	"github.com/hackgods/advisor-booking-engine/internal/config"
	"github.com/hackgods/advisor-booking-engine/internal/db"
	"github.com/hackgods/advisor-booking-engine/internal/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Nutrition",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychology",
	"Physiotherapy",
	"Sleep Medicine",
}

var timezones = []string{"UTC", "Europe/London", "Europe/Berlin", "America/New_York", "Asia/Kolkata"}

var weekdays = []appointment.DayOfWeek{
	appointment.Monday,
	appointment.Tuesday,
	appointment.Wednesday,
	appointment.Thursday,
	appointment.Friday,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.MustNewLogger(cfg.Env, cfg.LogLevel).Named("seed")
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	gofakeit.Seed(time.Now().UnixNano())

	advisors := getInt("SEED_ADVISORS", 50)
	patients := getInt("SEED_PATIENTS", 5000)

	if err := seedAdvisors(ctx, pool, logger, advisors); err != nil {
		logger.Fatal("seed advisors", zap.Error(err))
	}
	if err := seedPatients(ctx, pool, logger, patients); err != nil {
		logger.Fatal("seed patients", zap.Error(err))
	}

	logger.Info("seed complete", zap.Int("advisors", advisors), zap.Int("patients", patients))
}

// workingWeek builds a weekday template with random opening hours and an
// occasional Saturday morning.
func workingWeek() []appointment.WorkingHoursEntry {
	open := gofakeit.Number(7, 10)
	closing := gofakeit.Number(15, 19)

	entries := make([]appointment.WorkingHoursEntry, 0, 7)
	for _, day := range weekdays {
		entries = append(entries, appointment.WorkingHoursEntry{
			DayOfWeek: day,
			StartTime: fmt.Sprintf("%02d:00", open),
			EndTime:   fmt.Sprintf("%02d:00", closing),
			// roughly one weekday off in ten
			Available: gofakeit.Number(1, 10) > 1,
		})
	}
	if gofakeit.Bool() {
		entries = append(entries, appointment.WorkingHoursEntry{
			DayOfWeek: appointment.Saturday,
			StartTime: "10:00",
			EndTime:   "14:00",
			Available: true,
		})
	}
	return entries
}

func seedAdvisors(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, count int) error {
	logger.Info("seeding advisors", zap.Int("count", count))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := 0; i < count; i++ {
		id := uuid.NewString()
		_, err := tx.Exec(ctx, `
			INSERT INTO advisors (id, name, specialty, timezone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.Name(), gofakeit.RandomString(specialties), gofakeit.RandomString(timezones))
		if err != nil {
			return fmt.Errorf("insert advisor: %w", err)
		}

		batch := &pgx.Batch{}
		for pos, e := range workingWeek() {
			batch.Queue(`
				INSERT INTO advisor_working_hours (advisor_id, position, day_of_week, start_time, end_time, available)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, id, pos, string(e.DayOfWeek), e.StartTime, e.EndTime, e.Available)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert working hours: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info("advisors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, count int) error {
	logger.Info("seeding patients", zap.Int("count", count))

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		rows := make([][]any, 0, end-offset)
		for i := offset; i < end; i++ {
			rows = append(rows, []any{uuid.NewString(), gofakeit.Name(), gofakeit.Email()})
		}

		_, err := pool.CopyFrom(ctx,
			pgx.Identifier{"patients"},
			[]string{"id", "name", "email"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy patients: %w", err)
		}

		logger.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
