package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aidar/team-requests-service/internal/app"
	"github.com/aidar/team-requests-service/internal/config"
	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/service"
)

const testJWTSecret = "test-jwt-secret-key-for-integration-tests"

// startPostgres поднимает PostgreSQL контейнер и применяет миграции
func startPostgres(t *testing.T, ctx context.Context) (*postgres.PostgresContainer, string) {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("requests_service_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	applyMigrations(t, connStr)

	return pgContainer, connStr
}

// newPool открывает пул соединений для прямых запросов в тестах
func newPool(t *testing.T, ctx context.Context, connStr string) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	return pool
}

// TestEnvironment содержит все ресурсы необходимые для сквозных тестов
type TestEnvironment struct {
	PostgresContainer *postgres.PostgresContainer
	RabbitContainer   *rabbitmq.RabbitMQContainer
	App               *app.App
	Config            *config.Config
	BaseURL           string
	DB                *pgxpool.Pool
	AMQP              *amqp.Connection

	ctx    context.Context
	cancel context.CancelFunc
	done   chan error
}

// SetupTestEnvironment поднимает PostgreSQL и RabbitMQ, затем запускает приложение
func SetupTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()
	ctx := context.Background()

	pgContainer, connStr := startPostgres(t, ctx)

	rmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-management-alpine",
		rabbitmq.WithAdminUsername("test"),
		rabbitmq.WithAdminPassword("test"),
	)
	require.NoError(t, err, "Failed to start RabbitMQ container")

	amqpURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	// Используем высокий порт для тестов чтобы избежать конфликтов
	testPort := "18081"
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", testPort)
	t.Setenv("DB_HOST", host)
	t.Setenv("DB_PORT", port.Port())
	t.Setenv("DB_USER", "test_user")
	t.Setenv("DB_PASSWORD", "test_password")
	t.Setenv("DB_NAME", "requests_service_test")
	t.Setenv("JWT_SECRET_KEY", testJWTSecret)
	t.Setenv("RABBITMQ_URL", amqpURL)
	t.Setenv("RABBITMQ_RETRY_DELAY", "1s")
	t.Setenv("OUTBOX_RELAY_SCHEDULE", "@every 1s")
	t.Setenv("OUTBOX_GRACE_PERIOD", "1s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	application, err := app.New(cfg)
	require.NoError(t, err, "Failed to create application")
	require.NoError(t, application.Initialize(ctx), "Failed to initialize application")

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- application.Run(runCtx)
	}()

	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err, "Failed to connect to RabbitMQ")

	env := &TestEnvironment{
		PostgresContainer: pgContainer,
		RabbitContainer:   rmqContainer,
		App:               application,
		Config:            cfg,
		BaseURL:           fmt.Sprintf("http://%s:%s", cfg.Server.Host, testPort),
		DB:                newPool(t, ctx, connStr),
		AMQP:              conn,
		ctx:               ctx,
		cancel:            cancel,
		done:              done,
	}

	env.WaitForHealthCheck(t)
	return env
}

// Cleanup очищает все тестовые ресурсы
func (te *TestEnvironment) Cleanup(t *testing.T) {
	t.Helper()

	te.cancel()
	select {
	case err := <-te.done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Logf("Application error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Log("Application did not stop in time")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if te.App != nil {
		_ = te.App.Shutdown(shutdownCtx)
	}

	if te.AMQP != nil {
		_ = te.AMQP.Close()
	}
	if te.DB != nil {
		te.DB.Close()
	}
	if te.RabbitContainer != nil {
		_ = te.RabbitContainer.Terminate(te.ctx)
	}
	if te.PostgresContainer != nil {
		_ = te.PostgresContainer.Terminate(te.ctx)
	}
}

// Token выпускает токен с теми же параметрами подписи, что и у приложения
func (te *TestEnvironment) Token(t *testing.T, userID, campus string, roles ...string) string {
	t.Helper()

	token, err := service.NewAuthService(testJWTSecret, time.Hour).IssueToken(domain.Identity{
		UserID:     userID,
		CampusCode: campus,
		Roles:      roles,
	})
	require.NoError(t, err)
	return token
}

// Channel открывает канал AMQP, закрываемый по завершении теста
func (te *TestEnvironment) Channel(t *testing.T) *amqp.Channel {
	t.Helper()

	ch, err := te.AMQP.Channel()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

// applyMigrations применяет миграции БД
func applyMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("pgx/v5", connStr)
	require.NoError(t, err, "Failed to open database connection")
	defer db.Close()

	migrationPath := filepath.Join(getProjectRoot(t), "migrations", "000001_init_schema.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	require.NoError(t, err, "Failed to read migration file")

	_, err = db.Exec(string(migrationSQL))
	require.NoError(t, err, "Failed to apply migration")
}

// getProjectRoot возвращает корневую директорию проекта
func getProjectRoot(t *testing.T) string {
	t.Helper()

	// Поднимаемся по директориям пока не найдем go.mod
	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("Could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// MakeRequest вспомогательная функция для HTTP запросов в тестах
func (te *TestEnvironment) MakeRequest(t *testing.T, method, path string, body io.Reader, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, te.BaseURL+path, body)
	require.NoError(t, err, "Failed to create request")

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err, "Failed to make request")

	return resp
}

// WaitForHealthCheck ждет пока приложение станет доступным
func (te *TestEnvironment) WaitForHealthCheck(t *testing.T) {
	t.Helper()

	for i := 0; i < 50; i++ {
		resp, err := http.Get(te.BaseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatal("Application did not become healthy in time")
}
