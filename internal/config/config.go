package config

import (
	"errors"
	"time"
)

type Config struct {
	Service   *ServiceConfig
	HTTP      *HTTPConfig
	Redis     *RedisConfig
	Postgres  *PostgresConfig
	Auth      *AuthConfig
	Presence  *PresenceConfig
	Worker    *WorkerConfig
	WebSocket *WebSocketConfig
	WebRTC    *WebRTCConfig
	Tracer    *TracerConfig
	Logger    *LoggerConfig
}

type ServiceConfig struct {
	Name    string
	Env     string
	Add     string
	Version string
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	Migrate         bool
}

type AuthConfig struct {
	JWTSecret  string
	Issuer     string
	TokenTTL   time.Duration
	BcryptCost int
}

type PresenceConfig struct {
	Shards       int
	ShardBuffer  int
	WriteTimeout time.Duration
}

type WorkerConfig struct {
	ExpiryInterval time.Duration
}

type WebSocketConfig struct {
	ReadLimit    int64
	WriteTimeout time.Duration
	SendBuffer   int
	// IdleTimeout closes a connection that sends nothing for this long. Zero disables it.
	IdleTimeout time.Duration
}

type WebRTCConfig struct {
	ICEServers        []string
	CandidatePoolSize int
}

type TracerConfig struct {
	Address     string
	SampleRatio float64
}

type LoggerConfig struct {
	Level  string
	Format string
}

var (
	ErrMissingJWTSecret = errors.New("config: JWT_SECRET is required")
	ErrInvalidBcrypt    = errors.New("config: AUTH_BCRYPT_COST out of range")
)

func (c *Config) Validate() error {
	var errs []error
	if c.Auth == nil || c.Auth.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.Auth != nil && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		errs = append(errs, ErrInvalidBcrypt)
	}
	return errors.Join(errs...)
}
