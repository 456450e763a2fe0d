package repository

import (
	"context"
	"io/fs"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"secure-file-service/migrations"
)

// setupTestDB は配布しているSQLite用スキーマを適用したインメモリDBを作成する。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// 接続ごとに別DBになるため1接続に固定
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	fsys, err := migrations.For("sqlite")
	if err != nil {
		t.Fatalf("failed to load migrations: %v", err)
	}
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}
	for _, name := range names {
		sql, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("failed to read %s: %v", name, err)
		}
		if err := db.Exec(string(sql)).Error; err != nil {
			t.Fatalf("failed to apply %s: %v", name, err)
		}
	}
	if err := NewMigrationRepository(db).EnsureTable(context.Background()); err != nil {
		t.Fatalf("failed to create schema_migrations: %v", err)
	}

	return db
}
