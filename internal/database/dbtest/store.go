// Package dbtest provides an in-memory database.Store for tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/database"
)

// Table is a fake table: ordered columns plus column values. Values are returned by SampleValue
// in round-robin order so tests stay deterministic.
type Table struct {
	Name    string
	Columns []database.ColumnInfo
	Values  map[string][]string
}

// Store is an in-memory database.Store. The Err fields, when set, are returned by the matching call.
type Store struct {
	mu     sync.Mutex
	tables []Table

	ListTablesErr  error
	ListColumnsErr error
	SampleErr      error
	ExecuteErr     error

	// Rows is returned by Execute.
	Rows []map[string]any

	SampleCalls int
	Executed    []string
	cursor      map[string]int
}

var (
	_ database.Store  = (*Store)(nil)
	_ database.Quoter = (*Store)(nil)
)

func NewStore(tables ...Table) *Store {
	return &Store{tables: tables, cursor: make(map[string]int)}
}

// Orders returns the store used across the engine's tests: a single orders table.
func Orders() *Store {
	return NewStore(Table{
		Name: "orders",
		Columns: []database.ColumnInfo{
			{Name: "order_id", DataType: "int"},
			{Name: "customer", DataType: "varchar"},
			{Name: "amount", DataType: "decimal"},
			{Name: "order_date", DataType: "date"},
		},
		Values: map[string][]string{
			"order_id":   {"1", "2", "3"},
			"customer":   {"Alice", "Bob", "O'Neil"},
			"amount":     {"150.00", "20.50", "99.99"},
			"order_date": {"2024-01-15", "2024-02-01", "2024-03-10"},
		},
	})
}

// DropColumn removes a column, simulating a schema change between introspection and sampling.
func (s *Store) DropColumn(table, column string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tables {
		if s.tables[i].Name != table {
			continue
		}
		kept := s.tables[i].Columns[:0]
		for _, c := range s.tables[i].Columns {
			if c.Name != column {
				kept = append(kept, c)
			}
		}
		s.tables[i].Columns = kept
		delete(s.tables[i].Values, column)
	}
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	if s.ListTablesErr != nil {
		return nil, s.ListTablesErr
	}
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.Name
	}
	return names, nil
}

func (s *Store) ListColumns(ctx context.Context, tableName string) ([]database.ColumnInfo, error) {
	if s.ListColumnsErr != nil {
		return nil, s.ListColumnsErr
	}
	for _, t := range s.tables {
		if t.Name == tableName {
			return append([]database.ColumnInfo(nil), t.Columns...), nil
		}
	}
	return nil, nil
}

func (s *Store) SampleValue(ctx context.Context, tableName, columnName string, distinct bool) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SampleCalls++
	if s.SampleErr != nil {
		return "", false, s.SampleErr
	}
	for _, t := range s.tables {
		if t.Name != tableName {
			continue
		}
		found := false
		for _, c := range t.Columns {
			if c.Name == columnName {
				found = true
				break
			}
		}
		if !found {
			return "", false, fmt.Errorf("unknown column %s.%s", tableName, columnName)
		}
		values := t.Values[columnName]
		if len(values) == 0 {
			return "", false, nil
		}
		key := tableName + "." + columnName
		if s.cursor == nil {
			s.cursor = make(map[string]int)
		}
		v := values[s.cursor[key]%len(values)]
		s.cursor[key]++
		return v, true, nil
	}
	return "", false, fmt.Errorf("unknown table %s", tableName)
}

// QuoteIdentifier quotes name with MySQL backticks.
func (s *Store) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (s *Store) Execute(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	s.mu.Lock()
	s.Executed = append(s.Executed, query)
	s.mu.Unlock()
	if s.ExecuteErr != nil {
		return nil, s.ExecuteErr
	}
	if s.Rows == nil {
		return []map[string]any{}, nil
	}
	return s.Rows, nil
}
