package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const openAttempts = 5

// Open connects to Postgres through the pgx stdlib driver. The API
// usually starts alongside the database in compose setups, so the
// initial ping retries with backoff instead of failing on the first
// refused connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Requests hold a connection only for short transactions (counter
	// bumps, single-row reads), so a small pool with recycled
	// connections is enough.
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	backoff := 500 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt >= openAttempts {
			break
		}
		log.Printf("store: ping attempt %d/%d failed: %v", attempt, openAttempts, err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("ping db: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("ping db: %w", err)
}
