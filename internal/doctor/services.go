package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	redis "github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver
)

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// validatePostgres pings the database the web app is configured for.
func validatePostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	db, err := sql.Open("postgres", ensureSSLModeDisabled(dsn))
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	return nil
}

// ensureSSLModeDisabled forces sslmode=disable for databases on this machine
func ensureSSLModeDisabled(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || !isLocalHost(parsed.Hostname()) {
		return dsn
	}

	query := parsed.Query()
	query.Set("sslmode", "disable")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func isLocalHost(host string) bool {
	if host == "" || host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// validateRedis pings the cache the web app is configured for.
func validateRedis(ctx context.Context, redisURL string, timeout time.Duration) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = timeout

	// First try a plain TCP connection
	conn, err := net.DialTimeout("tcp", opts.Addr, timeout)
	if err != nil {
		return fmt.Errorf("cannot connect to Redis at %s: %w", opts.Addr, err)
	}
	conn.Close()

	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}
