package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"gov_queue/internal/logging"
)

// DayCloser закрывает сессии, датированные раньше указанного дня.
type DayCloser interface {
	CloseDay(ctx context.Context, day time.Time) (int, error)
}

// CloseStaleSessions закрывает вчерашние и более старые сессии: ожидающие
// записи пропускаются, обслуживаемые завершаются.
func CloseStaleSessions(ctx context.Context, closer DayCloser, now time.Time) {
	log := logging.With("tasks")
	n, err := closer.CloseDay(ctx, now)
	if err != nil {
		log.Error().Err(err).Int("closed", n).Msg("Ошибка при закрытии сессий прошлых дней")
		return
	}
	if n == 0 {
		log.Debug().Msg("Незакрытых сессий прошлых дней нет")
		return
	}
	log.Info().Int("closed", n).Msg("Сессии прошлых дней закрыты")
}

// InitScheduler инициализирует планировщик cron-задач. spec в формате с
// секундами, например "0 5 0 * * *" - каждый день в 00:05:00.
func InitScheduler(ctx context.Context, closer DayCloser, spec string, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))

	_, err := c.AddFunc(spec, func() {
		CloseStaleSessions(ctx, closer, time.Now())
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	logging.Info().Str("close_day_spec", spec).Msg("Cron-планировщик запущен")
	return c, nil
}
