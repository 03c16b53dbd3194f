package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/andresuchdata/docsync/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&config.DatabaseConfig{
		Host: "db", Port: "5433", User: "sync", Password: "pw", DBName: "docsync", SSLMode: "require",
	})
	assert.Equal(t, "host=db port=5433 user=sync password=pw dbname=docsync sslmode=require", dsn)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	raw, err := sqlx.Connect("pgx", url)
	require.NoError(t, err)
	// temp tables live on a single connection
	raw.SetMaxOpenConns(1)
	db := Wrap(raw)
	defer db.Close()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TEMP TABLE tx_rollback_check (v INT)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tx_rollback_check (v) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tx_rollback_check`))
	assert.Equal(t, 0, n)
}
