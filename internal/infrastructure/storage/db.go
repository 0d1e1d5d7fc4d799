// Package storage 提供 SQLite 持久化
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/pulseboard/backend/internal/infrastructure/config"
)

// GetDBPath 获取数据库路径
// 默认位于数据目录下：~/.pulseboard/pulseboard.db
func GetDBPath() (string, error) {
	return filepath.Join(config.GetDataDir(), "pulseboard.db"), nil
}

// OpenDB 打开数据库连接
// path 为空时使用默认路径
func OpenDB(path string) (*sql.DB, error) {
	if path == "" {
		defaultPath, err := GetDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get database path: %w", err)
		}
		path = defaultPath
	}

	// 确保目录存在
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL 模式：写入不阻塞并发读取，读取方看到查询开始时的一致快照
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ProvideDB 提供数据库连接（wire）
func ProvideDB(dbCfg *config.DatabaseConfig) (*sql.DB, error) {
	return OpenDB(dbCfg.Path)
}
