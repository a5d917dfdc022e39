package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/config"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/database"
)

type mysqlHandler struct{}

var _ database.DialectHandler = (*mysqlHandler)(nil)

func (h mysqlHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.User == "" || cfg.Password == "" || cfg.CloudSQLInstanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, pass, instance)")
	}
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName

	d, err := cloudsqlconn.NewDialer(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}

	var opts []cloudsqlconn.DialOption
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}

	network := fmt.Sprintf("cloudsql-%s", instanceConnectionName)

	mysql.RegisterDialContext(network,
		func(ctx context.Context, addr string) (net.Conn, error) {
			conn, dialErr := d.Dial(ctx, instanceConnectionName, opts...)
			if dialErr != nil {
				zap.L().Error("Cloud SQL dial failed", zap.String("instance", instanceConnectionName), zap.Error(dialErr))
			}
			return conn, dialErr
		})

	mysqlCfg := newMySQLConfig(cfg)
	mysqlCfg.Net = network
	mysqlCfg.Addr = instanceConnectionName

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		mysql.DeregisterDialContext(network)
		d.Close()
		return nil, fmt.Errorf("sql.Open failed for CloudSQL MySQL: %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	mysqlCfg := newMySQLConfig(cfg)
	mysqlCfg.Net = "tcp"
	mysqlCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard mysql): %w", err)
	}
	return dbPool, nil
}

// newMySQLConfig keeps DATE and DATETIME values as text so they read back exactly as stored.
func newMySQLConfig(cfg config.DatabaseConfig) *mysql.Config {
	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.User
	mysqlCfg.Passwd = cfg.Password
	mysqlCfg.DBName = cfg.DBName
	mysqlCfg.AllowNativePasswords = true
	mysqlCfg.ParseTime = false
	return mysqlCfg
}

func (h mysqlHandler) QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "`", "``")
	return fmt.Sprintf("`%s`", name)
}

func (h mysqlHandler) ListDatabases(ctx context.Context, db *database.DB) ([]string, error) {
	rows, err := db.Pool.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("error querying databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning database name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating database rows: %w", err)
	}
	return names, nil
}

func (h mysqlHandler) EnsureDatabase(ctx context.Context, db *database.DB, name string) (bool, error) {
	query := "SELECT SCHEMA_NAME FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?"
	var existing string
	err := db.Pool.QueryRowContext(ctx, query, name).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("error checking for database %s: %w", name, err)
	}

	if _, err := db.Pool.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", h.QuoteIdentifier(name))); err != nil {
		return false, fmt.Errorf("error creating database %s: %w", name, err)
	}
	return true, nil
}

func (h mysqlHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	query := "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"

	rows, err := db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

// ListColumns reports DATA_TYPE (e.g. "int", "varchar") rather than the full COLUMN_TYPE, which is
// what the schema classifier expects.
func (h mysqlHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	query := `
		  SELECT COLUMN_NAME, DATA_TYPE
		  FROM information_schema.COLUMNS
		  WHERE TABLE_SCHEMA = DATABASE()
			AND TABLE_NAME = ?
		  ORDER BY ORDINAL_POSITION;`

	rows, err := db.Pool.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo
	for rows.Next() {
		var colInfo database.ColumnInfo
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType); err != nil {
			return nil, fmt.Errorf("error scanning column name and data type: %w", err)
		}
		columns = append(columns, colInfo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}

	return columns, nil
}

func (h mysqlHandler) SampleValueSQL(tableName, columnName string, distinct bool) string {
	quotedTable := h.QuoteIdentifier(tableName)
	quotedColumn := h.QuoteIdentifier(columnName)
	if distinct {
		return fmt.Sprintf(
			"SELECT CAST(v AS CHAR) FROM (SELECT DISTINCT %s AS v FROM %s WHERE %s IS NOT NULL) AS d ORDER BY RAND() LIMIT 1",
			quotedColumn, quotedTable, quotedColumn)
	}
	return fmt.Sprintf("SELECT CAST(%s AS CHAR) FROM %s WHERE %s IS NOT NULL ORDER BY RAND() LIMIT 1",
		quotedColumn, quotedTable, quotedColumn)
}

func (h mysqlHandler) CreateTableSQL(tableName string, headers []string) string {
	cols := make([]string, len(headers))
	for i, header := range headers {
		cols[i] = fmt.Sprintf("%s VARCHAR(255)", h.QuoteIdentifier(header))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", h.QuoteIdentifier(tableName), strings.Join(cols, ", "))
}

func (h mysqlHandler) InsertRowSQL(tableName string, headers []string) string {
	cols := make([]string, len(headers))
	marks := make([]string, len(headers))
	for i, header := range headers {
		cols[i] = h.QuoteIdentifier(header)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		h.QuoteIdentifier(tableName), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func init() {
	database.RegisterDialectHandler("mysql", mysqlHandler{})
	database.RegisterDialectHandler("cloudsqlmysql", mysqlHandler{})
}
