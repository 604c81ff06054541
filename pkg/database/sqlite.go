package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

// sqliteStore 是 RunStore 接口的 SQLite 实现
type sqliteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS conversion_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input_path TEXT NOT NULL,
		input_checksum TEXT NOT NULL,
		output_path TEXT NOT NULL,
		records INTEGER NOT NULL,
		converted INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		converted_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conversion_runs_paths
		ON conversion_runs (input_path, output_path);
	`

// NewSQLiteStore 初始化 SQLite 数据库并返回 RunStore 接口实例
func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (RunStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// 尝试创建表，如果不存在
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close() // 创建表失败也要关闭连接
		return nil, fmt.Errorf("failed to create conversion_runs table: %w", err)
	}
	logger.Info("SQLite history database initialized", zap.String("path", dataSourceName))
	return &sqliteStore{db: db, logger: logger}, nil
}

// Close 关闭数据库连接
func (s *sqliteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.logger.Debug("SQLite database connection closed")
		return err
	}
	return nil
}

// RecordRun 记录一次成功的转换
func (s *sqliteStore) RecordRun(run Run) error {
	if run.ConvertedAt.IsZero() {
		run.ConvertedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO conversion_runs (input_path, input_checksum, output_path, records, converted, skipped, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.InputPath, run.InputChecksum, run.OutputPath, run.Records, run.Converted, run.Skipped, run.ConvertedAt.UTC())
	if err != nil {
		s.logger.Error("Failed to record conversion run", zap.String("input", run.InputPath), zap.Error(err))
		return fmt.Errorf("failed to record run for %s: %w", run.InputPath, err)
	}
	s.logger.Debug("Conversion run recorded",
		zap.String("input", run.InputPath),
		zap.String("checksum", run.InputChecksum))
	return nil
}

// LastChecksum 查询最近一次转换时输入文件的校验和
func (s *sqliteStore) LastChecksum(inputPath, outputPath string) (string, bool, error) {
	var checksum string
	err := s.db.QueryRow(
		`SELECT input_checksum FROM conversion_runs
		 WHERE input_path = ? AND output_path = ?
		 ORDER BY id DESC LIMIT 1`,
		inputPath, outputPath).Scan(&checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Error("Failed to query last checksum", zap.String("input", inputPath), zap.Error(err))
		return "", false, fmt.Errorf("failed to query last run for %s: %w", inputPath, err)
	}
	return checksum, true, nil
}
