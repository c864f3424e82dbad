//go:build integration

package infra

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

func ResetAll(ctx context.Context, db *sql.DB, rdb *goredis.Client) error {
	if err := ResetPostgres(ctx, db); err != nil {
		return err
	}
	if rdb != nil {
		return rdb.FlushDB(ctx).Err()
	}
	return nil
}

func ResetPostgres(ctx context.Context, db *sql.DB) error {
	// refresh_tokens cascades from users
	_, err := db.ExecContext(ctx, `TRUNCATE TABLE users RESTART IDENTITY CASCADE;`)
	if err != nil {
		return fmt.Errorf("reset postgres: %w", err)
	}
	return nil
}
