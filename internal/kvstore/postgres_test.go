package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	_, err = testDB.Exec(`
		CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store := NewPostgresStore(testDB)
	ctx := context.Background()

	t.Cleanup(func() {
		_, _ = testDB.Exec("DELETE FROM kv_entries")
	})

	if _, err := store.Get(ctx, KeyOrders); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound for missing key, got %v", err)
	}

	if err := store.Set(ctx, KeyOrders, []byte(`[]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, KeyOrders)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `[]` {
		t.Errorf("Unexpected value: %q", string(got))
	}
}

func TestPostgresStoreUpsert(t *testing.T) {
	store := NewPostgresStore(testDB)
	ctx := context.Background()

	t.Cleanup(func() {
		_, _ = testDB.Exec("DELETE FROM kv_entries")
	})

	if err := store.Set(ctx, KeyCart, []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, KeyCart, []byte("v2")); err != nil {
		t.Fatalf("Overwriting Set failed: %v", err)
	}

	got, err := store.Get(ctx, KeyCart)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Expected latest value v2, got %q", string(got))
	}

	var count int
	if err := testDB.QueryRow("SELECT COUNT(*) FROM kv_entries WHERE key = $1", KeyCart).Scan(&count); err != nil {
		t.Fatalf("Count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Upsert should keep a single row per key, got %d", count)
	}
}

func TestPostgresStoreRemove(t *testing.T) {
	store := NewPostgresStore(testDB)
	ctx := context.Background()

	t.Cleanup(func() {
		_, _ = testDB.Exec("DELETE FROM kv_entries")
	})

	if err := store.Set(ctx, KeyCurrentUser, []byte(`{"email":"a@b.com"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Remove(ctx, KeyCurrentUser); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := store.Get(ctx, KeyCurrentUser); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after removal, got %v", err)
	}

	if err := store.Remove(ctx, KeyCurrentUser); err != nil {
		t.Errorf("Remove of missing key should succeed, got %v", err)
	}
}
