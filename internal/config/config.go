package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig   // Настройки HTTP сервера
	Database DatabaseConfig // Настройки подключения к БД
	JWT      JWTConfig      // Настройки JWT авторизации
	RabbitMQ RabbitMQConfig // Настройки подключения к брокеру
	Topology TopologyConfig // Имена exchange/очередей/ключей маршрутизации
	Outbox   OutboxConfig   // Настройки повторной отправки исходящих команд
	Audit    AuditConfig    // Настройки канала аудита
	Log      LogConfig      // Настройки логирования
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" default:"8001"`
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"requests_service"`
	Password string `envconfig:"DB_PASSWORD" default:"requests_service_pass"`
	Name     string `envconfig:"DB_NAME" default:"requests_service"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
}

// JWTConfig содержит настройки JWT авторизации
type JWTConfig struct {
	Secret          string `envconfig:"JWT_SECRET_KEY" required:"true"`
	ExpirationHours int    `envconfig:"JWT_EXPIRATION_HOURS" default:"24"`
	ReviewerRole    string `envconfig:"JWT_REVIEWER_ROLE" default:"requests_reviewer"`
}

// RabbitMQConfig содержит настройки подключения к RabbitMQ
type RabbitMQConfig struct {
	URL             string        `envconfig:"RABBITMQ_URL"`
	User            string        `envconfig:"RABBITMQ_USER" default:"guest"`
	Password        string        `envconfig:"RABBITMQ_PASSWORD" default:"guest"`
	Host            string        `envconfig:"RABBITMQ_HOST" default:"rabbitmq"`
	Port            string        `envconfig:"RABBITMQ_PORT" default:"5672"`
	VHost           string        `envconfig:"RABBITMQ_VHOST" default:"/"`
	ConsumerEnabled bool          `envconfig:"RABBITMQ_CONSUMER_ENABLED" default:"true"`
	Prefetch        int           `envconfig:"RABBITMQ_PREFETCH" default:"10"`
	RetryDelay      time.Duration `envconfig:"RABBITMQ_RETRY_DELAY" default:"10s"`
	DialTimeout     time.Duration `envconfig:"RABBITMQ_DIAL_TIMEOUT" default:"15s"`
	MaxDeliveries   int           `envconfig:"RABBITMQ_MAX_DELIVERIES" default:"5"`
	PublishTimeout  time.Duration `envconfig:"RABBITMQ_PUBLISH_TIMEOUT" default:"5s"`
}

// TopologyConfig содержит имена объектов брокера
type TopologyConfig struct {
	CommandsExchange   string `envconfig:"TOPOLOGY_COMMANDS_EXCHANGE" default:"teams_commands_exchange"`
	DeadLetterExchange string `envconfig:"TOPOLOGY_DEAD_LETTER_EXCHANGE" default:"requests_service.dlx"`
	DeadLetterQueue    string `envconfig:"TOPOLOGY_DEAD_LETTER_QUEUE" default:"requests_service.queue.dead_letter"`

	TeamCreationQueue   string `envconfig:"TOPOLOGY_TEAM_CREATION_QUEUE" default:"requests_service.queue.team_creation"`
	TeamCreationKey     string `envconfig:"TOPOLOGY_TEAM_CREATION_KEY" default:"team.creation.requested"`
	TeamDeletionQueue   string `envconfig:"TOPOLOGY_TEAM_DELETION_QUEUE" default:"requests_service.queue.team_deletion"`
	TeamDeletionKey     string `envconfig:"TOPOLOGY_TEAM_DELETION_KEY" default:"team.deletion.requested"`
	MemberAdditionQueue string `envconfig:"TOPOLOGY_MEMBER_ADDITION_QUEUE" default:"requests_service.queue.member_addition"`
	MemberAdditionKey   string `envconfig:"TOPOLOGY_MEMBER_ADDITION_KEY" default:"team.member.addition.requested"`
	MemberRemovalQueue  string `envconfig:"TOPOLOGY_MEMBER_REMOVAL_QUEUE" default:"requests_service.queue.member_removal"`
	MemberRemovalKey    string `envconfig:"TOPOLOGY_MEMBER_REMOVAL_KEY" default:"team.member.removal.requested"`

	EventsExchange   string `envconfig:"TOPOLOGY_EVENTS_EXCHANGE" default:"teams_service_exchange"`
	TeamCreatedKey   string `envconfig:"TOPOLOGY_TEAM_CREATION_REVIEWED_KEY" default:"team.creation.reviewed"`
	TeamRemovedKey   string `envconfig:"TOPOLOGY_TEAM_REMOVAL_REVIEWED_KEY" default:"team.removal.reviewed"`
	MemberAddedKey   string `envconfig:"TOPOLOGY_MEMBER_ADDITION_REVIEWED_KEY" default:"team.member.addition.reviewed"`
	MemberRemovedKey string `envconfig:"TOPOLOGY_MEMBER_REMOVAL_REVIEWED_KEY" default:"team.member.removal.reviewed"`
	AuditExchange    string `envconfig:"TOPOLOGY_AUDIT_EXCHANGE" default:"audit_events_exchange"`
	AuditKeyPrefix   string `envconfig:"TOPOLOGY_AUDIT_KEY_PREFIX" default:"audit.requests"`
}

// OutboxConfig содержит настройки ретранслятора outbox
type OutboxConfig struct {
	RelaySchedule string        `envconfig:"OUTBOX_RELAY_SCHEDULE" default:"@every 15s"`
	BatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	GracePeriod   time.Duration `envconfig:"OUTBOX_GRACE_PERIOD" default:"30s"`
}

// AuditConfig содержит настройки фонового канала аудита
type AuditConfig struct {
	QueueSize int `envconfig:"AUDIT_QUEUE_SIZE" default:"256"`
	Workers   int `envconfig:"AUDIT_WORKERS" default:"2"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`  // debug, info, warn, error
	Format string `envconfig:"LOG_FORMAT" default:"json"` // json или text
}

// GetExpiration возвращает срок действия токена как time.Duration
func (j JWTConfig) GetExpiration() time.Duration {
	return time.Duration(j.ExpirationHours) * time.Hour
}

// DSN возвращает строку подключения к PostgreSQL
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// AMQPURL возвращает адрес брокера: RABBITMQ_URL если задан, иначе собирается из частей.
// Пустой vhost и "/" означают vhost по умолчанию, ведущий слэш добавляется при отсутствии.
func (r RabbitMQConfig) AMQPURL() string {
	if r.URL != "" {
		return r.URL
	}

	vhostPath := ""
	switch {
	case r.VHost == "" || r.VHost == "/":
	case !strings.HasPrefix(r.VHost, "/"):
		vhostPath = "/" + r.VHost
	default:
		vhostPath = r.VHost
	}

	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(r.User, r.Password),
		Host:   r.Host + ":" + r.Port,
		Path:   vhostPath,
	}
	return u.String()
}

// Load читает конфигурацию из переменных окружения (и из .env, если файл есть)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate проверяет значения, которые envconfig проверить не может
func (c *Config) Validate() error {
	if c.RabbitMQ.Prefetch <= 0 {
		return fmt.Errorf("RABBITMQ_PREFETCH must be positive")
	}
	if c.RabbitMQ.RetryDelay <= 0 {
		return fmt.Errorf("RABBITMQ_RETRY_DELAY must be positive")
	}
	if c.RabbitMQ.MaxDeliveries <= 0 {
		return fmt.Errorf("RABBITMQ_MAX_DELIVERIES must be positive")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if c.Audit.QueueSize <= 0 || c.Audit.Workers <= 0 {
		return fmt.Errorf("AUDIT_QUEUE_SIZE and AUDIT_WORKERS must be positive")
	}
	return nil
}
