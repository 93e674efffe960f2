package svc

import (
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"watttime-api/internal/config"
	carbonpersist "watttime-api/internal/persistence/carbon"
	"watttime-api/pkg/cachestore"
	"watttime-api/pkg/carbon"
	_ "watttime-api/pkg/carbon/sources/watttime"
)

type ServiceContext struct {
	Config config.Config

	CarbonConfig  *carbon.Config
	Fetchers      map[string]carbon.Fetcher
	DefaultSource string

	// Store is shared by every client built from this context, so the CLI,
	// the warm daemon, and tests all see the same day buckets.
	Store cachestore.Store

	// Recorder is nil unless Postgres is configured.
	Recorder carbon.Recorder
	DBConn   sqlx.SqlConn
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{Config: c}

	// Source config: hydrated by config.Load when Carbon.File is set,
	// otherwise fall back to the project default etc/carbon.yaml.
	carbonCfg := c.Carbon.Value
	if carbonCfg == nil {
		carbonCfg = carbon.MustLoad()
	}
	fetchers, err := carbonCfg.BuildSources()
	if err != nil {
		log.Fatalf("failed to build carbon sources: %v", err)
	}
	svc.CarbonConfig = carbonCfg
	svc.Fetchers = fetchers
	svc.DefaultSource = carbonCfg.DefaultName()

	store, err := buildStore(c.Cache)
	if err != nil {
		log.Fatalf("failed to build cache store: %v", err)
	}
	svc.Store = store

	// Only inject the recorder when a DSN is provided; queries never depend
	// on the database.
	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svc.DBConn = conn
		svc.Recorder = carbonpersist.NewService(carbonpersist.Config{SQLConn: conn})
	}
	return svc
}

func buildStore(c config.CacheConf) (cachestore.Store, error) {
	switch c.Backend {
	case "", "memory":
		return cachestore.NewMemory(), nil
	case "lru":
		return cachestore.NewLRU(c.LRUSize)
	case "redis":
		var opts []cachestore.RedisOption
		if c.TTLSeconds > 0 {
			opts = append(opts, cachestore.WithTTL(time.Duration(c.TTLSeconds)*time.Second))
		}
		return cachestore.NewRedis(c.Redis, carbon.Namespace, opts...)
	default:
		return nil, fmt.Errorf("svc: unknown cache backend %q", c.Backend)
	}
}

// SourceName resolves an optional source override to a configured source,
// falling back to the default.
func (s *ServiceContext) SourceName(source string) string {
	if source != "" {
		return source
	}
	return s.DefaultSource
}

// ClientFor builds a carbon client over the named source, wired to the shared
// store, the configured staleness table, and the recorder when present. Extra
// options are applied last so callers can attach observers.
func (s *ServiceContext) ClientFor(source string, opts ...carbon.Option) (*carbon.Client, error) {
	name := s.SourceName(source)
	fetcher, ok := s.Fetchers[name]
	if !ok {
		return nil, fmt.Errorf("svc: unknown carbon source %q", name)
	}
	base := []carbon.Option{
		carbon.WithStore(s.Store),
		carbon.WithStaleness(s.Config.StalenessTable()),
		carbon.WithDefaultStaleness(s.Config.DefaultStaleness()),
		carbon.WithFetchPadding(s.Config.FetchPadding()),
	}
	if s.Recorder != nil {
		base = append(base, carbon.WithRecorder(s.Recorder))
	}
	return carbon.NewClient(fetcher, append(base, opts...)...)
}
