package testutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// bettingTables is every table the migrations create. Reset empties them in
// one statement so foreign keys never block the truncate.
var bettingTables = []string{
	"bet_selections",
	"bets",
	"events",
	"account_balance_daily",
	"account_balances",
	"ledger_entries",
	"wallets",
}

// One container serves every test in a package binary. The reaper removes it
// when the binary exits.
var sharedPostgres = sync.OnceValues(startPostgres)

// SetupTestDB returns a migrated database with all betting tables empty.
// Tests in one package share the container, so they must not run in parallel.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sharedPostgres()
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if err := Reset(context.Background(), db); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	return db
}

// Reset truncates the betting tables and restarts the entry number sequence.
func Reset(ctx context.Context, db *sql.DB) error {
	quoted := make([]string, len(bettingTables))
	for i, name := range bettingTables {
		quoted[i] = pq.QuoteIdentifier(name)
	}
	_, err := db.ExecContext(ctx, `TRUNCATE `+strings.Join(quoted, ", ")+` RESTART IDENTITY CASCADE`)
	return err
}

func startPostgres() (*sql.DB, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("betting_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("connection string: %w", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	dir, err := migrationsDir()
	if err != nil {
		return nil, err
	}
	if err := applyMigrations(ctx, db, dir); err != nil {
		return nil, err
	}
	return db, nil
}

func applyMigrations(ctx context.Context, db *sql.DB, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		body, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(f), err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

// migrationsDir walks up from the package under test to the module root.
func migrationsDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations"), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("module root not found")
		}
		dir = parent
	}
}
