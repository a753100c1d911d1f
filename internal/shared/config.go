package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	Store     string // memory | mysql
	MySQLDSN  string
	RedisAddr string
	RedisDB   int
	RedisPass string

	LockBackend string // local | redis
	LockWait    time.Duration
	LockTTL     time.Duration

	LookaheadDays        int
	AllowCheckedInCancel bool

	AuditSink    string // log | http | kafka
	AuditURL     string
	AuditKey     string
	AuditRPS     int
	KafkaBrokers []string
	KafkaTopic   string

	CacheTTL      time.Duration
	SweepWorkers  int
	SweepInterval time.Duration
	SweepNoShow   bool
	SeedDemo      bool
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	flag := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		Store:     env("STORE", "mysql"),
		MySQLDSN:  env("MYSQL_DSN", "root:root@tcp(localhost:3306)/hotel?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisDB:   atoi("REDIS_DB", 0),
		RedisPass: env("REDIS_PASSWORD", ""),

		LockBackend: env("LOCK_BACKEND", "local"),
		LockWait:    time.Duration(atoi("LOCK_WAIT_MS", 2000)) * time.Millisecond,
		LockTTL:     time.Duration(atoi("LOCK_TTL_MS", 10000)) * time.Millisecond,

		LookaheadDays:        atoi("BOOKED_LOOKAHEAD_DAYS", 0),
		AllowCheckedInCancel: flag("ALLOW_CHECKED_IN_CANCEL", false),

		AuditSink:    env("AUDIT_SINK", "log"),
		AuditURL:     env("AUDIT_URL", ""),
		AuditKey:     env("AUDIT_KEY", ""),
		AuditRPS:     atoi("AUDIT_RPS", 20),
		KafkaBrokers: list(env("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   env("KAFKA_TOPIC", "hotel.audit"),

		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		SweepWorkers:  atoi("SWEEP_WORKERS", 8),
		SweepInterval: time.Duration(atoi("SWEEP_INTERVAL_SECONDS", 300)) * time.Second,
		SweepNoShow:   flag("SWEEP_AUTO_NO_SHOW", false),
		SeedDemo:      flag("SEED_DEMO", false),
	}
	if c.AuditSink == "http" && c.AuditURL == "" {
		log.Warn().Msg("AUDIT_SINK=http but AUDIT_URL is empty")
	}
	if c.LockBackend == "local" && c.Store == "mysql" {
		log.Warn().Msg("LOCK_BACKEND=local: run a single api instance per database and no sweeper")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func list(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
