package tester

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emrgen/impact/internal/compress"
	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/store"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB opens a migrated sqlite database in a per test directory. The
// connection is closed when the test ends.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "db")
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		t.Fatal(err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "impact.db")+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := model.Migrate(db); err != nil {
		t.Fatal(err)
	}

	return db
}

// TestStore returns a GormStore over TestDB using gzip content compression.
func TestStore(t testing.TB) *store.GormStore {
	t.Helper()
	return store.NewGormStore(TestDB(t), compress.NewGZip())
}

// Redis connects to REDIS_ADDR or skips the test when it is not set.
func Redis(t testing.TB) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Protocol: 2})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
