//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospital/frontdesk/internal/platform/db"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// setupPostgres uses TEST_DATABASE_URL when set and otherwise starts a
// throwaway postgres container.
func setupPostgres(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv("TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, connStr, 10, 1)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &testDB{
		Pool:          pool,
		ConnStr:       connStr,
		MigrationsDir: findMigrationsDir(),
	}, func() {
		pool.Close()
		cleanup()
	}, nil
}

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	// test/integration -> module root
	return filepath.Join(dir, "..", "..", "migrations")
}

// uniqueSchema generates a schema name for test isolation.
func uniqueSchema(prefix string) string {
	short := strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	return fmt.Sprintf("%s_%s", prefix, short)
}

// withSearchPath appends a search_path runtime parameter to a postgres URL.
func withSearchPath(connStr, schema string) string {
	sep := "?"
	if strings.Contains(connStr, "?") {
		sep = "&"
	}
	return connStr + sep + "search_path=" + schema
}

// newSchemaPool migrates a fresh schema and returns a pool whose sessions
// resolve unqualified table names to it. The schema is dropped on cleanup.
func newSchemaPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	schema := uniqueSchema("it")

	migrator, err := db.NewMigrator(globalDB.Pool, globalDB.MigrationsDir, schema)
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	if _, err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}

	pool, err := db.NewPool(ctx, withSearchPath(globalDB.ConnStr, schema), 16, 1)
	if err != nil {
		t.Fatalf("schema pool: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		if _, err := globalDB.Pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE"); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
	})
	return pool
}
