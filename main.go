package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	_ "gov_queue/docs"
	"gov_queue/internal/auth"
	"gov_queue/internal/config"
	"gov_queue/internal/external"
	"gov_queue/internal/handlers"
	"gov_queue/internal/logging"
	"gov_queue/internal/notify"
	"gov_queue/internal/queue"
	"gov_queue/internal/storage"
	"gov_queue/internal/tasks"
	"gov_queue/internal/ws"
)

// @Title						Электронная очередь госуслуг
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка загрузки конфигурации:", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Сервер остановлен с ошибкой")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := storage.ConnectDatabase(cfg.Database); err != nil {
		return err
	}
	if err := storage.Migrate(storage.DB); err != nil {
		return err
	}
	checks := map[string]handlers.Check{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := storage.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	if cfg.Redis.Enabled {
		if err := storage.InitRedis(ctx, cfg.Redis); err != nil {
			return err
		}
		defer storage.RedisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return storage.RedisClient.Ping(ctx).Err() }
	}

	appointments, directory := external.FromConfig(cfg.External, storage.RedisClient)

	hub := ws.NewHub()
	go hub.Run(ctx)

	g, gctx := errgroup.WithContext(ctx)

	// с Redis события идут через pub/sub, чтобы их получили хабы всех реплик
	var sink notify.Publisher = hub
	if storage.RedisClient != nil {
		sink = notify.NewRedisPublisher(storage.RedisClient, cfg.Redis.ChannelPrefix)
		g.Go(func() error {
			return notify.Relay(gctx, storage.RedisClient, cfg.Redis.ChannelPrefix, hub)
		})
	}
	notifier := notify.NewAsync(sink, cfg.Queue.NotifierBuffer)
	defer notifier.Close()

	loc := cfg.Queue.Location()
	engine := queue.New(storage.NewGormStore(storage.DB), appointments, directory, queue.Config{
		DefaultCapacity:       cfg.Queue.DefaultCapacity,
		DefaultServiceMinutes: cfg.Queue.DefaultServiceMinutes,
		OperationTimeout:      cfg.Queue.OperationTimeout,
		Location:              loc,
		DefaultPageSize:       cfg.Queue.DefaultPageSize,
		MaxPageSize:           cfg.Queue.MaxPageSize,
	}, queue.WithNotifier(notifier))

	scheduler, err := tasks.InitScheduler(ctx, engine, cfg.Tasks.CloseDaySpec, loc)
	if err != nil {
		return fmt.Errorf("cron: %w", err)
	}
	defer func() { <-scheduler.Stop().Done() }()

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", handlers.Health(checks))

	handlers.RegisterRoutes(r, handlers.NewQueueHandler(engine), auth.AuthMiddleware([]byte(cfg.Auth.AccessSecret)), hub.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP-сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logging.Info().Msg("Остановка HTTP-сервера")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
