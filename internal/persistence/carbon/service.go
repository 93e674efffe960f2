package carbonpersist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"watttime-api/pkg/carbon"
)

// Service implements the carbon sample persistence hook over Postgres.
type Service struct {
	sqlConn sqlx.SqlConn
	source  string
}

// Config enumerates dependencies required to persist samples.
type Config struct {
	SQLConn sqlx.SqlConn
	// Source labels rows with the fetcher that produced them. Defaults to
	// "watttime".
	Source string
}

// NewService wires a sample recorder. Returns nil when dependencies missing,
// so the result can be handed straight to carbon.WithRecorder.
func NewService(cfg Config) carbon.Recorder {
	if cfg.SQLConn == nil {
		return nil
	}
	source := strings.TrimSpace(cfg.Source)
	if source == "" {
		source = "watttime"
	}
	return &Service{sqlConn: cfg.SQLConn, source: source}
}

// RecordSamples upserts one fetched batch into carbon_samples. Timestamps are
// stored in UTC; re-fetching a window overwrites prior values for the same
// instant.
func (s *Service) RecordSamples(ctx context.Context, region, market string, samples []carbon.Sample) error {
	if s == nil || s.sqlConn == nil || len(samples) == 0 {
		return nil
	}
	stmt := `
INSERT INTO public.carbon_samples (
    source, region, market, ts, value, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, NOW(), NOW()
)
ON CONFLICT (source, region, market, ts) DO UPDATE SET
    value = EXCLUDED.value,
    updated_at = NOW();`
	for _, sample := range samples {
		if _, err := s.sqlConn.ExecCtx(ctx, stmt,
			s.source,
			region,
			market,
			sample.Time.UTC(),
			sample.Value,
		); err != nil {
			return fmt.Errorf("carbonpersist: upsert sample %s %s at %s: %w",
				region, market, sample.Time.UTC().Format(time.RFC3339), err)
		}
	}
	return nil
}
