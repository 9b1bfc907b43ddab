package ledger

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
)

// Stores bundles the ledgers the relay needs. Progress and Settings are
// cleared when a batch closes; Closures outlives batches
type Stores struct {
	Progress Ledger[api.Entry]
	Settings Ledger[string]
	Closures Ledger[string]
	Backend  string
	closer   func() error
}

// NewMemoryStores creates in-process stores
func NewMemoryStores() *Stores {
	return &Stores{
		Progress: NewMemory[api.Entry](),
		Settings: NewMemory[string](),
		Closures: NewMemory[string](),
		Backend:  "memory",
		closer:   func() error { return nil },
	}
}

// NewRedisStores creates stores that share one Redis client
func NewRedisStores(client *redis.Client, prefix string) *Stores {
	return &Stores{
		Progress: NewRedis[api.Entry](client, prefix, ProgressNamespace),
		Settings: NewRedis[string](client, prefix, SettingsNamespace),
		Closures: NewRedis[string](client, prefix, ClosureNamespace),
		Backend:  "redis",
		closer:   client.Close,
	}
}

// NewPostgresStores creates stores that share one Postgres table
func NewPostgresStores(pg *PostgresDB) *Stores {
	return &Stores{
		Progress: NewPostgres[api.Entry](pg, ProgressNamespace),
		Settings: NewPostgres[string](pg, SettingsNamespace),
		Closures: NewPostgres[string](pg, ClosureNamespace),
		Backend:  "postgres",
		closer:   pg.Close,
	}
}

// Open builds Stores from a DSN. memory:// (or an empty DSN) keeps state in
// process; redis:// and postgres:// share it across relay instances
func Open(dsn string) (*Stores, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemoryStores(), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "memory", "mem", "inmem":
		return NewMemoryStores(), nil
	case "redis", "rediss":
		// go-redis rejects query options it does not know
		query := parsed.Query()
		prefix := query.Get("prefix")
		query.Del("prefix")
		parsed.RawQuery = query.Encode()

		opts, err := redis.ParseURL(parsed.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDSN, err)
		}
		return NewRedisStores(redis.NewClient(opts), prefix), nil
	case "postgres", "postgresql":
		pg, err := NewPostgresDB(dsn)
		if err != nil {
			return nil, err
		}
		return NewPostgresStores(pg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, parsed.Scheme)
	}
}

// Close releases any connections held by the stores
func (s *Stores) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}
