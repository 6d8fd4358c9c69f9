package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// busyTimeoutMs covers a second process (a CLI "advance" next to a running
// server) holding the write lock.
const busyTimeoutMs = 5000

// Open creates a GORM *DB backed by SQLite. The parent directory of a file
// path is created if missing.
//
// The pool is pinned to a single connection: an in-memory database exists
// per connection, and SQLite allows one writer at a time anyway. Callers
// must therefore use the transaction handle inside Transaction callbacks.
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create dir %q: %w", dir, err)
			}
		}
		dsn = fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=on", path, busyTimeoutMs)
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
