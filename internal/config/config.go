package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config はアプリケーション設定を表す
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	Booking      BookingConfig
	Scheduler    SchedulerConfig
	Notification NotificationConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string        `env:"PORT" env-default:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"30s"`
	MetricsUser  string        `env:"METRICS_USER"`
	MetricsPass  string        `env:"METRICS_PASSWORD"`
	AutoMigrate  bool          `env:"AUTO_MIGRATE" env-default:"true"`
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD" env-default:"postgres"`
	DBName   string `env:"DB_NAME" env-default:"event_booking"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
	URL      string `env:"DATABASE_URL"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`

	MigrationsPath string `env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" env-default:"true"`
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	URL      string `env:"REDIS_URL"`
}

// LogConfig はログ設定
type LogConfig struct {
	Env   string `env:"APP_ENV" env-default:"development"`
	Level string `env:"LOG_LEVEL"`
}

// BookingConfig は予約ポリシー設定
type BookingConfig struct {
	// CancellationCutoff は開始時刻の何分前までキャンセルできるか。0 なら開始時刻まで
	CancellationCutoff time.Duration `env:"BOOKING_CANCEL_CUTOFF" env-default:"0s"`
	LockTTL            time.Duration `env:"BOOKING_LOCK_TTL" env-default:"10s"`
	// CascadeLockTTL はイベント中止時の一括キャンセル中に延長するロック期限
	CascadeLockTTL  time.Duration `env:"BOOKING_CASCADE_LOCK_TTL" env-default:"1m"`
	AvailabilityTTL time.Duration `env:"BOOKING_AVAILABILITY_TTL" env-default:"30s"`
}

func (c *BookingConfig) validate() error {
	if c.CancellationCutoff < 0 {
		return fmt.Errorf("BOOKING_CANCEL_CUTOFF は 0 以上を指定してください: %s", c.CancellationCutoff)
	}
	if c.LockTTL < 0 || c.CascadeLockTTL < 0 {
		return fmt.Errorf("ロック期限は 0 以上を指定してください: lock=%s cascade=%s", c.LockTTL, c.CascadeLockTTL)
	}
	return nil
}

// SchedulerConfig は定期タスク設定
type SchedulerConfig struct {
	Interval     time.Duration `env:"SCHEDULER_INTERVAL" env-default:"1m"`
	ReminderLead time.Duration `env:"SCHEDULER_REMINDER_LEAD" env-default:"1h"`
	BatchSize    int           `env:"SCHEDULER_BATCH_SIZE" env-default:"500"`
}

// NotificationConfig は通知配送設定
type NotificationConfig struct {
	GRPCAddr     string        `env:"NOTIFIER_GRPC_ADDR" env-default:"localhost:50051"`
	Timeout      time.Duration `env:"NOTIFIER_TIMEOUT" env-default:"5s"`
	MaxAttempts  int           `env:"NOTIFIER_MAX_ATTEMPTS" env-default:"3"`
	BaseBackoff  time.Duration `env:"NOTIFIER_BASE_BACKOFF" env-default:"30s"`
	MaxBackoff   time.Duration `env:"NOTIFIER_MAX_BACKOFF" env-default:"30m"`
	PollInterval time.Duration `env:"NOTIFIER_POLL_INTERVAL" env-default:"5s"`
	BatchSize    int           `env:"NOTIFIER_BATCH_SIZE" env-default:"50"`
	Workers      int           `env:"NOTIFIER_WORKERS" env-default:"8"`
	StaleAfter   time.Duration `env:"NOTIFIER_STALE_AFTER" env-default:"5m"`
	OperatorID   string        `env:"NOTIFIER_OPERATOR_ID"`
}

// Load は環境変数から設定を読み込む
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if err := cfg.Booking.validate(); err != nil {
		return nil, err
	}
	cfg.Database.applyURL()
	cfg.Redis.applyURL()
	return &cfg, nil
}

// applyURL は DATABASE_URL が設定されていれば個別設定を上書きする
func (c *DatabaseConfig) applyURL() {
	if c.URL == "" {
		return
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return
	}
	c.Host = u.Hostname()
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		c.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	if name := strings.TrimLeft(u.Path, "/"); name != "" {
		c.DBName = name
	}
	c.SSLMode = "require"
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.SSLMode = mode
	}
}

// applyURL は REDIS_URL が設定されていれば個別設定を上書きする
func (c *RedisConfig) applyURL() {
	if c.URL == "" {
		return
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return
	}
	c.Host = u.Hostname()
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}
