// Package storage implements jobs.Store on top of memory, sqlite and postgres,
// and the per-source cooldown used to skip rate limited sites.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/jobscout/internal/jobs"
	"go.uber.org/zap"
)

const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Open picks a backend by dsn:
//
//	memory                    in-process store, lost on exit
//	postgres://, postgresql:// postgres via pgxpool
//	sqlite://path, path        sqlite file (or :memory:)
func Open(ctx context.Context, dsn string, logger *zap.Logger) (jobs.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn = strings.TrimSpace(dsn)

	switch {
	case dsn == "" || dsn == "memory":
		logger.Debug("using in-memory store")
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		logger.Debug("using postgres store")
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		path := strings.TrimPrefix(dsn, "sqlite://")
		logger.Debug("using sqlite store", zap.String("path", path))
		lite, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return lite, nil
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// encodeJSON stores nil slices as empty arrays so the json functions of the databases always see an array.
func encodeJSON[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return b, nil
}

func decodeJSON[T any](raw []byte) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
