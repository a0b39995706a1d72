package external

import (
	"github.com/go-redis/redis/v8"

	"gov_queue/internal/config"
	"gov_queue/internal/logging"
	"gov_queue/internal/queue"
)

// FromConfig выбирает клиентов сервиса записей и справочника: HTTP, если
// заданы адреса, иначе in-memory заглушки для локального запуска.
// cache может быть nil.
func FromConfig(cfg config.ExternalConfig, cache *redis.Client) (queue.AppointmentService, queue.DirectoryService) {
	var (
		appointments queue.AppointmentService
		directory    queue.DirectoryService
	)
	if cfg.AppointmentsURL != "" {
		appointments = NewAppointmentClient(cfg.AppointmentsURL, cfg.Timeout, BreakerConfig{})
	} else {
		logging.Warn().Msg("APPOINTMENTS_URL не задан, используется сервис записей в памяти")
		appointments = NewMemoryAppointments()
	}
	if cfg.DirectoryURL != "" {
		directory = NewDirectoryClient(cfg.DirectoryURL, cfg.Timeout, BreakerConfig{}, cache, cfg.CacheTTL)
	} else {
		logging.Warn().Msg("DIRECTORY_URL не задан, используется справочник в памяти")
		directory = NewMemoryDirectory()
	}
	return appointments, directory
}
