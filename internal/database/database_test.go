package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/config"
)

// Mock DialectHandler implementation
type mockDialectHandler struct {
	mu                  sync.Mutex
	listTablesFn        func(db *DB) ([]string, error)
	listColumnsFn       func(db *DB, tableName string) ([]ColumnInfo, error)
	listTablesCalls     int
	listColumnsCalls    int
	listDatabasesCalls  int
	ensureDatabaseCalls int
}

func (m *mockDialectHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, errors.New("mock CreateCloudSQLPool not implemented")
}

func (m *mockDialectHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, errors.New("mock CreateStandardPool not implemented")
}

func (m *mockDialectHandler) QuoteIdentifier(name string) string { return fmt.Sprintf(`"%s"`, name) }

func (m *mockDialectHandler) ListDatabases(ctx context.Context, db *DB) ([]string, error) {
	m.mu.Lock()
	m.listDatabasesCalls++
	m.mu.Unlock()
	return []string{"mockdb"}, nil
}

func (m *mockDialectHandler) EnsureDatabase(ctx context.Context, db *DB, name string) (bool, error) {
	m.mu.Lock()
	m.ensureDatabaseCalls++
	m.mu.Unlock()
	return false, nil
}

func (m *mockDialectHandler) ListTables(ctx context.Context, db *DB) ([]string, error) {
	m.mu.Lock()
	m.listTablesCalls++
	m.mu.Unlock()
	if m.listTablesFn != nil {
		return m.listTablesFn(db)
	}
	return []string{"mock_table"}, nil
}

func (m *mockDialectHandler) ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error) {
	m.mu.Lock()
	m.listColumnsCalls++
	m.mu.Unlock()
	if m.listColumnsFn != nil {
		return m.listColumnsFn(db, tableName)
	}
	return []ColumnInfo{{Name: "mock_col", DataType: "int"}}, nil
}

func (m *mockDialectHandler) SampleValueSQL(tableName, columnName string, distinct bool) string {
	if distinct {
		return fmt.Sprintf("SAMPLE DISTINCT %s.%s", tableName, columnName)
	}
	return fmt.Sprintf("SAMPLE %s.%s", tableName, columnName)
}

func (m *mockDialectHandler) CreateTableSQL(tableName string, headers []string) string {
	return "CREATE " + tableName
}

func (m *mockDialectHandler) InsertRowSQL(tableName string, headers []string) string {
	return "INSERT " + tableName
}

func TestRegisterAndGetDialectHandler(t *testing.T) {
	// Clean up handlers registered by other tests or init()
	mu.Lock()
	originalHandlers := make(map[string]DialectHandler)
	for k, v := range dialectHandlers {
		originalHandlers[k] = v
	}
	dialectHandlers = make(map[string]DialectHandler)
	mu.Unlock()

	defer func() {
		mu.Lock()
		dialectHandlers = originalHandlers
		mu.Unlock()
	}()

	mockHandler := &mockDialectHandler{}
	testDialect := "testdialect"

	_, err := GetDialectHandler(testDialect)
	assert.Error(t, err, "unregistered dialect should fail")

	RegisterDialectHandler(testDialect, mockHandler)
	handler, err := GetDialectHandler(testDialect)
	require.NoError(t, err)
	assert.Same(t, mockHandler, handler)

	mockHandler2 := &mockDialectHandler{}
	RegisterDialectHandler(testDialect, mockHandler2)
	handler, err = GetDialectHandler(testDialect)
	require.NoError(t, err)
	assert.Same(t, mockHandler2, handler)

	_, err = GetDialectHandler("unknown")
	assert.Error(t, err)
}

// Helper to create a DB with a mock handler and pool for delegation tests
func newTestDBWithMockHandler(t *testing.T, handler DialectHandler) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err, "opening a stub database connection")

	return &DB{
		Pool:    mockDb,
		Handler: handler,
		Config:  config.DatabaseConfig{Dialect: "mock"},
	}, mock
}

func TestDBMethodsDelegateToHandler(t *testing.T) {
	mockHandler := &mockDialectHandler{}
	db, mock := newTestDBWithMockHandler(t, mockHandler)
	defer db.Pool.Close()
	ctx := context.Background()

	tests := []struct {
		name          string
		dbMethodCall  func() error
		expectedCalls *int
	}{
		{"ListTables", func() error { _, err := db.ListTables(ctx); return err }, &mockHandler.listTablesCalls},
		{"ListColumns", func() error { _, err := db.ListColumns(ctx, "t1"); return err }, &mockHandler.listColumnsCalls},
		{"ListDatabases", func() error { _, err := db.ListDatabases(ctx); return err }, &mockHandler.listDatabasesCalls},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initialCalls := *tt.expectedCalls
			err := tt.dbMethodCall()
			assert.NoError(t, err)
			assert.Equal(t, initialCalls+1, *tt.expectedCalls, "handler method for %s should be called once", tt.name)
		})
	}

	mock.ExpectPing()
	assert.NoError(t, db.Ping(ctx))
	assert.Equal(t, "mock", db.GetConfig().Dialect)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBMethodsWithoutHandler(t *testing.T) {
	db := &DB{}
	ctx := context.Background()

	_, err := db.ListTables(ctx)
	assert.Error(t, err)
	_, err = db.ListColumns(ctx, "t")
	assert.Error(t, err)
	_, _, err = db.SampleValue(ctx, "t", "c", false)
	assert.Error(t, err)
	_, err = db.Execute(ctx, "SELECT 1")
	assert.Error(t, err)
	assert.Error(t, db.Ping(ctx))
	assert.NoError(t, db.Close())
}

func TestSampleValue(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		distinct  bool
		mockSetup func(mock sqlmock.Sqlmock)
		wantValue string
		wantOK    bool
		wantErr   bool
	}{
		{
			name: "value found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SAMPLE orders.amount")).
					WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("42.50"))
			},
			wantValue: "42.50",
			wantOK:    true,
		},
		{
			name:     "distinct query used",
			distinct: true,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SAMPLE DISTINCT orders.amount")).
					WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("7"))
			},
			wantValue: "7",
			wantOK:    true,
		},
		{
			name: "empty table",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SAMPLE orders.amount")).
					WillReturnRows(sqlmock.NewRows([]string{"v"}))
			},
		},
		{
			name: "null value",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SAMPLE orders.amount")).
					WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(nil))
			},
		},
		{
			name: "query error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SAMPLE orders.amount")).WillReturnError(errors.New("boom"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newTestDBWithMockHandler(t, &mockDialectHandler{})
			defer db.Pool.Close()
			tt.mockSetup(mock)

			value, ok, err := db.SampleValue(ctx, "orders", "amount", tt.distinct)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantValue, value)
				assert.Equal(t, tt.wantOK, ok)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("rows become maps", func(t *testing.T) {
		db, mock := newTestDBWithMockHandler(t, &mockDialectHandler{})
		defer db.Pool.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT customer, SUM(amount) FROM orders GROUP BY customer")).
			WillReturnRows(sqlmock.NewRows([]string{"customer", "SUM(amount)"}).
				AddRow([]byte("Alice"), []byte("150.00")).
				AddRow("Bob", nil))

		rows, err := db.Execute(ctx, "  SELECT customer, SUM(amount) FROM orders GROUP BY customer ")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Alice", rows[0]["customer"])
		assert.Equal(t, "150.00", rows[0]["SUM(amount)"])
		assert.Nil(t, rows[1]["SUM(amount)"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result is non-nil", func(t *testing.T) {
		db, mock := newTestDBWithMockHandler(t, &mockDialectHandler{})
		defer db.Pool.Close()

		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}))
		rows, err := db.Execute(ctx, "SELECT a FROM t")
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("empty query rejected", func(t *testing.T) {
		db, _ := newTestDBWithMockHandler(t, &mockDialectHandler{})
		defer db.Pool.Close()

		_, err := db.Execute(ctx, "   ")
		assert.Error(t, err)
	})

	t.Run("driver error wrapped", func(t *testing.T) {
		db, mock := newTestDBWithMockHandler(t, &mockDialectHandler{})
		defer db.Pool.Close()

		driverErr := errors.New("syntax error")
		mock.ExpectQuery("SELECT").WillReturnError(driverErr)
		_, err := db.Execute(ctx, "SELECT nope")
		assert.ErrorIs(t, err, driverErr)
	})
}

func TestImportRows(t *testing.T) {
	ctx := context.Background()
	headers := []string{"name", "age"}

	t.Run("commits all rows", func(t *testing.T) {
		db, mock := newTestDBWithMockHandler(t, &mockDialectHandler{})
		defer db.Pool.Close()

		mock.ExpectExec("CREATE people").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT people")
		prep.ExpectExec().WithArgs("Ann", "31").WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WithArgs("Ben", "27").WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		n, err := db.ImportRows(ctx, "people", headers, [][]string{{"Ann", "31"}, {"Ben", "27"}})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back and drops the new table", func(t *testing.T) {
		db, mock := newTestDBWithMockHandler(t, &mockDialectHandler{})
		defer db.Pool.Close()

		mock.ExpectExec("CREATE people").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT people")
		prep.ExpectExec().WithArgs("Ann", "31").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()
		mock.ExpectExec(`DROP TABLE "people"`).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := db.ImportRows(ctx, "people", headers, [][]string{{"Ann", "31"}})
		assert.ErrorContains(t, err, "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure keeps a table that already existed", func(t *testing.T) {
		handler := &mockDialectHandler{listTablesFn: func(db *DB) ([]string, error) {
			return []string{"People"}, nil
		}}
		db, mock := newTestDBWithMockHandler(t, handler)
		defer db.Pool.Close()

		mock.ExpectExec("CREATE people").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT people")
		prep.ExpectExec().WithArgs("Ann", "31").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := db.ImportRows(ctx, "people", headers, [][]string{{"Ann", "31"}})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ragged row rejected before any statement", func(t *testing.T) {
		db, mock := newTestDBWithMockHandler(t, &mockDialectHandler{})
		defer db.Pool.Close()

		_, err := db.ImportRows(ctx, "people", headers, [][]string{{"Ann"}})
		assert.ErrorContains(t, err, "row 1 has 1 values")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing headers", func(t *testing.T) {
		db, _ := newTestDBWithMockHandler(t, &mockDialectHandler{})
		defer db.Pool.Close()

		_, err := db.ImportRows(ctx, "people", nil, nil)
		assert.Error(t, err)
	})
}

func TestQuoteIdentifierDelegatesToHandler(t *testing.T) {
	db, _ := newTestDBWithMockHandler(t, &mockDialectHandler{})
	defer db.Pool.Close()
	assert.Equal(t, `"order"`, db.QuoteIdentifier("order"))
	assert.Equal(t, "order", (&DB{}).QuoteIdentifier("order"))
}

func TestFormatRow(t *testing.T) {
	got := FormatRow(map[string]any{"b": 2, "a": "x", "c": nil})
	assert.Equal(t, "{a=x, b=2, c=NULL}", got)
}
