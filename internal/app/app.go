package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/aidar/team-requests-service/internal/config"
	"github.com/aidar/team-requests-service/internal/events"
	"github.com/aidar/team-requests-service/internal/handler"
	"github.com/aidar/team-requests-service/internal/messaging"
	"github.com/aidar/team-requests-service/internal/middleware"
	"github.com/aidar/team-requests-service/internal/repository/postgres"
	"github.com/aidar/team-requests-service/internal/service"
)

// App представляет приложение со всеми зависимостями
type App struct {
	config     *config.Config
	db         *pgxpool.Pool
	server     *http.Server
	logger     *slog.Logger
	publisher  *events.Publisher
	auditPub   *events.Publisher
	audit      *events.AuditSink
	relay      *service.OutboxRelay
	supervisor *messaging.Supervisor
}

// New создает новый экземпляр приложения
func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: NewLogger(cfg.Log, os.Stdout),
	}

	return app, nil
}

// Logger возвращает логгер приложения
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Initialize инициализирует все компоненты приложения
func (a *App) Initialize(ctx context.Context) error {
	// Подключаемся к базе данных
	if err := a.connectDB(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	a.setupComponents()

	a.logger.Info("Application initialized successfully")
	return nil
}

// connectDB устанавливает подключение к PostgreSQL с connection pool
func (a *App) connectDB(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(a.config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to parse database config: %w", err)
	}

	// Настраиваем размеры connection pool
	poolConfig.MaxConns = a.config.Database.MaxConns
	poolConfig.MinConns = a.config.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверяем подключение к БД
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = pool
	a.logger.Info("Connected to database")
	return nil
}

// setupComponents собирает репозитории, сервисы, брокер и HTTP сервер
func (a *App) setupComponents() {
	cfg := a.config

	// Слой репозиториев (работа с БД)
	requestRepo := postgres.NewRequestRepository(a.db)
	campusRepo := postgres.NewCampusRepository(a.db)
	outboxRepo := postgres.NewOutboxRepository(a.db)
	statsRepo := postgres.NewStatsRepository(a.db)

	// Исходящие команды и аудит
	// Аудит публикуется через отдельное соединение, чтобы не влиять на отправку команд
	a.publisher = events.NewPublisher(cfg.RabbitMQ, cfg.Topology, a.logger)
	a.auditPub = events.NewPublisher(cfg.RabbitMQ, cfg.Topology, a.logger)
	a.audit = events.NewAuditSink(a.auditPub, cfg.Topology.AuditKeyPrefix, cfg.Audit.QueueSize, cfg.Audit.Workers, a.logger)
	router := events.NewRouter(cfg.Topology)

	// Слой сервисов (бизнес-логика)
	materializer := service.NewMaterializer(requestRepo, a.logger)
	requestService := service.NewRequestService(requestRepo, campusRepo, materializer)
	reviewService := service.NewReviewService(
		requestRepo,
		outboxRepo,
		router,
		a.publisher,
		a.audit,
		cfg.JWT.ReviewerRole,
		a.logger,
	)
	statsService := service.NewStatsService(statsRepo)
	authService := service.NewAuthService(cfg.JWT.Secret, cfg.JWT.GetExpiration())
	a.relay = service.NewOutboxRelay(
		outboxRepo,
		a.publisher,
		cfg.Outbox.RelaySchedule,
		cfg.Outbox.BatchSize,
		cfg.Outbox.GracePeriod,
		a.logger,
	)

	// Потребитель входящих команд
	if cfg.RabbitMQ.ConsumerEnabled {
		dispatcher := messaging.NewDispatcher(materializer, cfg.RabbitMQ.Prefetch, cfg.RabbitMQ.MaxDeliveries, a.logger)
		a.supervisor = messaging.NewSupervisor(
			messaging.AMQPDialer(cfg.RabbitMQ),
			messaging.NewTopology(cfg.Topology, cfg.RabbitMQ.MaxDeliveries),
			dispatcher,
			cfg.RabbitMQ.Prefetch,
			cfg.RabbitMQ.RetryDelay,
			a.logger,
		)
	} else {
		a.logger.Info("RabbitMQ consumer disabled")
	}

	// HTTP обработчики и роутинг
	r := handler.NewRouter(
		handler.NewRequestHandler(requestService, reviewService),
		handler.NewStatsHandler(statsService),
		middleware.AuthMiddleware(authService),
	)

	// Создаем HTTP сервер с настройками таймаутов
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	a.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.logger.Info("HTTP server configured", "addr", addr)
}

// Run запускает HTTP сервер, потребителя команд, ретранслятор outbox и аудит.
// Блокируется до отмены ctx или фатальной ошибки одного из компонентов
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.supervisor != nil {
		g.Go(func() error {
			return a.supervisor.Run(gctx)
		})
	}

	g.Go(func() error {
		return a.relay.Run(gctx)
	})

	g.Go(func() error {
		return a.audit.Run(gctx)
	})

	return g.Wait()
}

// Shutdown корректно останавливает приложение
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application")

	// Останавливаем HTTP сервер (ждем завершения текущих запросов)
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.auditPub != nil {
		_ = a.auditPub.Close()
	}

	// Закрываем подключения к базе данных
	if a.db != nil {
		a.db.Close()
	}

	a.logger.Info("Application stopped gracefully")
	return nil
}
