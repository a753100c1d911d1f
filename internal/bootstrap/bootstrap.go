// Package bootstrap assembles the engine's collaborators from configuration.
// Both binaries share it so the api and the sweeper lock and audit the same way.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"hotel_inventory/internal/adapters/auditsink"
	redisad "hotel_inventory/internal/adapters/redis"
	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
	"hotel_inventory/internal/shared"
	"hotel_inventory/internal/storage/memory"
	mysqlrepo "hotel_inventory/internal/storage/mysql"
)

// Deps holds everything NewEngine needs plus what must be closed on shutdown.
type Deps struct {
	Repo    domain.Repository
	Locks   domain.RoomLocker
	Cache   domain.Cache // nil without redis
	Emitter *app.Emitter

	closers []func() error
}

func Build(ctx context.Context, cfg shared.Config, log zerolog.Logger) (*Deps, error) {
	d := &Deps{}

	switch cfg.Store {
	case "memory":
		d.Repo = memory.New()
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db.Ping: %w", err)
		}
		log.Info().Msg("database connection ok")
		d.Repo = mysqlrepo.New(db)
		d.closers = append(d.closers, db.Close)
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	var rc *redis.Client
	if cfg.Store == "mysql" || cfg.LockBackend == "redis" {
		rc = redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		d.Cache = redisad.NewCache(rc)
		d.closers = append(d.closers, rc.Close)
	}

	switch cfg.LockBackend {
	case "local":
		d.Locks = app.NewLockManager(cfg.LockWait)
	case "redis":
		d.Locks = redisad.NewLocker(rc, cfg.LockTTL, cfg.LockWait)
	default:
		d.Close()
		return nil, fmt.Errorf("unknown LOCK_BACKEND %q", cfg.LockBackend)
	}

	var sink domain.AuditSink
	switch cfg.AuditSink {
	case "log":
		sink = auditsink.NewLogSink(log)
	case "http":
		s, err := auditsink.NewHTTPSink(cfg.AuditURL, cfg.AuditKey, cfg.AuditRPS)
		if err != nil {
			d.Close()
			return nil, err
		}
		sink = s
	case "kafka":
		s := auditsink.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		d.closers = append(d.closers, s.Close)
		sink = s
	default:
		d.Close()
		return nil, fmt.Errorf("unknown AUDIT_SINK %q", cfg.AuditSink)
	}
	d.Emitter = app.NewEmitter(sink, cfg.AuditSink, 0, log)

	log.Info().
		Str("store", cfg.Store).
		Str("locks", cfg.LockBackend).
		Str("audit", cfg.AuditSink).
		Bool("cache", d.Cache != nil).
		Msg("dependencies ready")
	return d, nil
}

// Engine builds the engine over d.
func (d *Deps) Engine(cfg shared.Config, log zerolog.Logger) *app.Engine {
	return app.NewEngine(d.Repo, d.Locks, d.Emitter, d.Cache, log, app.Config{
		LookaheadDays:        cfg.LookaheadDays,
		AllowCheckedInCancel: cfg.AllowCheckedInCancel,
		// a memory store lives and dies with this process
		SoleWriter: cfg.Store == "memory",
	})
}

// Shutdown drains pending audit events, then closes connections.
func (d *Deps) Shutdown(ctx context.Context) error {
	var err error
	if d.Emitter != nil {
		err = d.Emitter.Close(ctx)
	}
	d.Close()
	return err
}

// Close releases connections in reverse order of acquisition.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
	d.closers = nil
}
