/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/config"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/logging"
)

// Store is the narrow store access capability consumed by the query engine.
type Store interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error)
	// SampleValue returns one value of the column picked in random row order. ok is false when the
	// column holds no non-NULL value.
	SampleValue(ctx context.Context, tableName, columnName string, distinct bool) (value string, ok bool, err error)
	Execute(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Admin covers the operations outside the query engine: database listing and data import.
type Admin interface {
	ListDatabases(ctx context.Context) ([]string, error)
	ImportRows(ctx context.Context, tableName string, headers []string, rows [][]string) (int, error)
}

// Quoter is implemented by stores that know their dialect's identifier quoting.
type Quoter interface {
	QuoteIdentifier(name string) string
}

var (
	_ Store  = (*DB)(nil)
	_ Admin  = (*DB)(nil)
	_ Quoter = (*DB)(nil)
)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
	Logger  *zap.Logger
}

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name     string
	DataType string
}

// DialectHandler implements the dialect specific parts of the store.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	ListDatabases(ctx context.Context, db *DB) ([]string, error)
	EnsureDatabase(ctx context.Context, db *DB, name string) (created bool, err error)
	ListTables(ctx context.Context, db *DB) ([]string, error)
	ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error)
	SampleValueSQL(tableName, columnName string, distinct bool) string
	CreateTableSQL(tableName string, headers []string) string
	InsertRowSQL(tableName string, headers []string) string
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[dialect]; exists {
		zap.L().Warn("Dialect handler is being overwritten", zap.String("dialect", dialect))
	}
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// New opens a pool for cfg and pings it. When cfg.CreateIfMissing is set and the database does not
// exist yet, it is created first.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	logger = logging.OrNop(logger)
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	if cfg.CreateIfMissing && cfg.DBName != "" {
		if err := ensureDatabase(ctx, handler, cfg, logger); err != nil {
			return nil, err
		}
	}

	pool, err := openPool(handler, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
	}, nil
}

func openPool(handler DialectHandler, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.IsCloudSQL() {
		return handler.CreateCloudSQLPool(cfg)
	}
	return handler.CreateStandardPool(cfg)
}

// ensureDatabase connects without a default schema and creates cfg.DBName if it is missing.
func ensureDatabase(ctx context.Context, handler DialectHandler, cfg config.DatabaseConfig, logger *zap.Logger) error {
	serverCfg := cfg
	serverCfg.DBName = ""
	pool, err := openPool(handler, serverCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to server to create database %s: %w", cfg.DBName, err)
	}
	defer pool.Close()

	server := &DB{Pool: pool, Handler: handler, Config: serverCfg, Logger: logger}
	created, err := handler.EnsureDatabase(ctx, server, cfg.DBName)
	if err != nil {
		return err
	}
	if created {
		logger.Info("Created database", zap.String("database", cfg.DBName))
	}
	return nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	db.logger().Warn("Attempted to close a nil database connection pool")
	return nil
}

// dropTable removes a table created by a failed import.
func (db *DB) dropTable(ctx context.Context, tableName string) {
	drop := fmt.Sprintf("DROP TABLE %s", db.Handler.QuoteIdentifier(tableName))
	if _, err := db.Pool.ExecContext(ctx, drop); err != nil {
		db.logger().Warn("Failed to drop table after import failure", zap.String("table", tableName), zap.Error(err))
		return
	}
	db.logger().Info("Dropped table after import failure", zap.String("table", tableName))
}

func (db *DB) logger() *zap.Logger {
	return logging.OrNop(db.Logger)
}

// QuoteIdentifier quotes name with the dialect's identifier quoting.
func (db *DB) QuoteIdentifier(name string) string {
	if db.Handler == nil {
		return name
	}
	return db.Handler.QuoteIdentifier(name)
}

func (db *DB) ListDatabases(ctx context.Context) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListDatabases(ctx, db)
}

func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListTables(ctx, db)
}

func (db *DB) ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListColumns(ctx, db, tableName)
}

func (db *DB) SampleValue(ctx context.Context, tableName, columnName string, distinct bool) (string, bool, error) {
	if db.Handler == nil {
		return "", false, fmt.Errorf("dialect handler not initialized")
	}
	if db.Pool == nil {
		return "", false, fmt.Errorf("database connection pool is not initialized")
	}
	query := db.Handler.SampleValueSQL(tableName, columnName, distinct)

	var value sql.NullString
	err := db.Pool.QueryRowContext(ctx, query).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to sample %s.%s: %w", tableName, columnName, err)
	}
	if !value.Valid {
		return "", false, nil
	}
	return value.String, true, nil
}

// Execute runs query and returns every row as a column name to value mapping. Byte slices are
// converted to strings so the rows render and marshal as text.
func (db *DB) Execute(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, fmt.Errorf("empty query")
	}

	db.logger().Debug("Executing query", zap.String("sql", trimmed), zap.Int("params", len(args)))
	rows, err := db.Pool.QueryContext(ctx, trimmed, args...)
	if err != nil {
		return nil, fmt.Errorf("failed executing query: %w", err)
	}
	defer rows.Close()

	return ScanRowMaps(rows)
}

// ImportRows creates tableName (if needed) with one column per header and inserts rows in a single
// transaction. It returns the number of inserted rows. MySQL commits DDL implicitly, so the table is
// created before the transaction starts and dropped again when the insert fails and the table did
// not exist beforehand.
func (db *DB) ImportRows(ctx context.Context, tableName string, headers []string, rows [][]string) (n int, err error) {
	if db.Pool == nil {
		return 0, fmt.Errorf("database connection pool is not initialized")
	}
	if db.Handler == nil {
		return 0, fmt.Errorf("dialect handler not initialized")
	}
	if tableName == "" || len(headers) == 0 {
		return 0, fmt.Errorf("table name and headers are required for import")
	}
	for i, row := range rows {
		if len(row) != len(headers) {
			return 0, fmt.Errorf("row %d has %d values, expected %d", i+1, len(row), len(headers))
		}
	}

	existing, err := db.Handler.ListTables(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("failed to list tables before import: %w", err)
	}
	existed := false
	for _, t := range existing {
		if strings.EqualFold(t, tableName) {
			existed = true
			break
		}
	}

	if _, err := db.Pool.ExecContext(ctx, db.Handler.CreateTableSQL(tableName, headers)); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}
	if !existed {
		defer func() {
			if err != nil {
				db.dropTable(ctx, tableName)
			}
		}()
	}

	tx, err := db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := db.Handler.InsertRowSQL(tableName, headers)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert for %s: %w", tableName, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		args := make([]any, len(row))
		for j, v := range row {
			args[j] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			db.logger().Error("Failed inserting row", zap.String("table", tableName), zap.Int("row", i+1), zap.Error(err))
			return 0, fmt.Errorf("failed inserting row %d into %s: %w", i+1, tableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(rows), nil
}
