// Команда обслуживания: миграции схемы и ручное закрытие сессий прошлых
// дней, когда cron основного сервера пропустил запуск.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gov_queue/internal/config"
	"gov_queue/internal/external"
	"gov_queue/internal/logging"
	"gov_queue/internal/queue"
	"gov_queue/internal/storage"
	"gov_queue/internal/tasks"
)

func main() {
	migrate := flag.Bool("migrate", true, "применить миграции")
	closeDay := flag.String("close-day", "", "закрыть сессии до указанного дня (YYYY-MM-DD или today)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка загрузки конфигурации:", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})

	if err := storage.ConnectDatabase(cfg.Database); err != nil {
		logging.Fatal().Err(err).Msg("Ошибка подключения к базе")
	}
	if *migrate {
		if err := storage.Migrate(storage.DB); err != nil {
			logging.Fatal().Err(err).Msg("Ошибка при миграции")
		}
		logging.Info().Msg("Миграции применены")
	}

	if *closeDay == "" {
		return
	}
	loc := cfg.Queue.Location()
	day := time.Now().In(loc)
	if *closeDay != "today" {
		day, err = time.ParseInLocation(time.DateOnly, *closeDay, loc)
		if err != nil {
			logging.Fatal().Err(err).Str("close_day", *closeDay).Msg("Неверная дата")
		}
	}

	appointments, directory := external.FromConfig(cfg.External, nil)
	engine := queue.New(storage.NewGormStore(storage.DB), appointments, directory, queue.Config{
		DefaultCapacity:       cfg.Queue.DefaultCapacity,
		DefaultServiceMinutes: cfg.Queue.DefaultServiceMinutes,
		OperationTimeout:      cfg.Queue.OperationTimeout,
		Location:              loc,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	tasks.CloseStaleSessions(ctx, engine, day)
}
