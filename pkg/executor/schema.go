package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jellydator/ttlcache/v3"
)

const (
	schemaCacheKey        = "schema"
	defaultSchemaCacheTTL = 5 * time.Minute
)

// PostgresSchemaFetcher builds a prompt-ready description of the public
// schema from information_schema. Snapshots are cached because the schema is
// fetched on every generation turn.
type PostgresSchemaFetcher struct {
	log   *slog.Logger
	pool  *pgxpool.Pool
	cache *ttlcache.Cache[string, string]
}

// NewPostgresSchemaFetcher creates a fetcher with the given cache TTL.
// A zero ttl selects the default of five minutes.
func NewPostgresSchemaFetcher(log *slog.Logger, pool *pgxpool.Pool, ttl time.Duration) *PostgresSchemaFetcher {
	if ttl == 0 {
		ttl = defaultSchemaCacheTTL
	}
	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()
	return &PostgresSchemaFetcher{log: log, pool: pool, cache: cache}
}

// FetchSchema implements SchemaFetcher.
func (f *PostgresSchemaFetcher) FetchSchema(ctx context.Context) (string, error) {
	if item := f.cache.Get(schemaCacheKey); item != nil {
		return item.Value(), nil
	}

	schema, err := f.buildSchema(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch schema: %w", err)
	}
	f.cache.Set(schemaCacheKey, schema, ttlcache.DefaultTTL)
	if f.log != nil {
		f.log.Debug("executor: schema snapshot refreshed", "bytes", len(schema))
	}
	return schema, nil
}

// Stop releases the cache janitor goroutine.
func (f *PostgresSchemaFetcher) Stop() {
	f.cache.Stop()
}

func (f *PostgresSchemaFetcher) buildSchema(ctx context.Context) (string, error) {
	const q = `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`

	rows, err := f.pool.Query(ctx, q)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var sb strings.Builder
	currentTable := ""
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return "", err
		}
		if table != currentTable {
			if currentTable != "" {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprintf("Table: %s\n", table))
			currentTable = table
		}
		marker := ""
		if nullable == "YES" {
			marker = " (nullable)"
		}
		sb.WriteString(fmt.Sprintf("  - %s: %s%s\n", column, dataType, marker))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
