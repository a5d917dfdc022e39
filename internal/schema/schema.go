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
package schema

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/database"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/logging"
)

// ColumnClass is the coarse semantic class of a column.
type ColumnClass int

const (
	Categorical ColumnClass = iota
	Numeric
)

func (c ColumnClass) String() string {
	if c == Numeric {
		return "numeric"
	}
	return "categorical"
}

func (c ColumnClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

var numericTypeMarkers = []string{"int", "float", "double", "decimal"}

// Classify derives the column class from the declared type alone.
func Classify(declaredType string) ColumnClass {
	t := strings.ToLower(declaredType)
	for _, marker := range numericTypeMarkers {
		if strings.Contains(t, marker) {
			return Numeric
		}
	}
	return Categorical
}

// IsDateLike reports whether the column name suggests a date, e.g. "order_date" or "birth_year".
func IsDateLike(columnName string) bool {
	name := strings.ToLower(columnName)
	return strings.Contains(name, "date") || strings.Contains(name, "year")
}

// ColumnInfo is a classified column. DateLike is independent of Class.
type ColumnInfo struct {
	Name         string      `json:"name"`
	DeclaredType string      `json:"declared_type"`
	Class        ColumnClass `json:"class"`
	DateLike     bool        `json:"date_like"`
}

func NewColumn(name, declaredType string) ColumnInfo {
	return ColumnInfo{
		Name:         name,
		DeclaredType: declaredType,
		Class:        Classify(declaredType),
		DateLike:     IsDateLike(name),
	}
}

// TableInfo holds a table's columns in ordinal order.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

func (t TableInfo) Numeric() []ColumnInfo {
	return t.filter(func(c ColumnInfo) bool { return c.Class == Numeric })
}

func (t TableInfo) Categorical() []ColumnInfo {
	return t.filter(func(c ColumnInfo) bool { return c.Class == Categorical })
}

func (t TableInfo) DateLike() []ColumnInfo {
	return t.filter(func(c ColumnInfo) bool { return c.DateLike })
}

func (t TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

func (t TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t TableInfo) filter(keep func(ColumnInfo) bool) []ColumnInfo {
	var out []ColumnInfo
	for _, c := range t.Columns {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// SchemaMap maps table names to tables. Iteration order is the order tables were added.
type SchemaMap struct {
	tables []TableInfo
	index  map[string]int
}

func NewSchemaMap(tables ...TableInfo) *SchemaMap {
	m := &SchemaMap{index: make(map[string]int, len(tables))}
	for _, t := range tables {
		m.Add(t)
	}
	return m
}

// Add appends t, replacing any table already present under the same name in place.
func (m *SchemaMap) Add(t TableInfo) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[t.Name]; ok {
		m.tables[i] = t
		return
	}
	m.index[t.Name] = len(m.tables)
	m.tables = append(m.tables, t)
}

func (m *SchemaMap) Tables() []TableInfo {
	if m == nil {
		return nil
	}
	return m.tables
}

func (m *SchemaMap) Table(name string) (TableInfo, bool) {
	if m == nil {
		return TableInfo{}, false
	}
	i, ok := m.index[name]
	if !ok {
		return TableInfo{}, false
	}
	return m.tables[i], true
}

func (m *SchemaMap) TableNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.tables))
	for i, t := range m.tables {
		names[i] = t.Name
	}
	return names
}

// ColumnNames returns every column name across all tables, in schema order. Names shared by several
// tables appear once per table.
func (m *SchemaMap) ColumnNames() []string {
	var names []string
	for _, t := range m.Tables() {
		names = append(names, t.ColumnNames()...)
	}
	return names
}

func (m *SchemaMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.tables)
}

// Introspector reads table and column metadata from the live store. It keeps no state between calls.
type Introspector struct {
	store  database.Store
	logger *zap.Logger
}

func NewIntrospector(store database.Store, logger *zap.Logger) *Introspector {
	return &Introspector{store: store, logger: logging.OrNop(logger)}
}

func (in *Introspector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := in.store.ListTables(ctx)
	if err != nil {
		return nil, &ErrSchemaUnavailable{Msg: "failed to list tables", Err: err}
	}
	return tables, nil
}

// DescribeTable returns the classified columns of a table in ordinal order. A table that reports no
// columns is treated as missing.
func (in *Introspector) DescribeTable(ctx context.Context, name string) ([]ColumnInfo, error) {
	raw, err := in.store.ListColumns(ctx, name)
	if err != nil {
		return nil, &ErrSchemaUnavailable{Msg: fmt.Sprintf("failed to describe table %s", name), Err: err}
	}
	if len(raw) == 0 {
		return nil, &ErrSchemaUnavailable{Msg: fmt.Sprintf("table %s does not exist", name), Err: ErrTableNotFound}
	}
	columns := make([]ColumnInfo, len(raw))
	for i, c := range raw {
		columns[i] = NewColumn(c.Name, c.DataType)
	}
	return columns, nil
}

// Introspect builds a SchemaMap of every table. filters, in the form produced by
// utils.ParseTablesFlag, restricts the tables and columns included; nil or empty means everything.
func (in *Introspector) Introspect(ctx context.Context, filters map[string][]string) (*SchemaMap, error) {
	tables, err := in.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	selected := filterTables(tables, filters)
	if len(filters) > 0 && len(selected) == 0 {
		in.logger.Info("No tables match the provided filters")
	}

	m := NewSchemaMap()
	for _, name := range selected {
		columns, err := in.DescribeTable(ctx, name)
		if err != nil {
			return nil, err
		}
		m.Add(TableInfo{Name: name, Columns: filterColumns(name, columns, filters)})
	}
	in.logger.Debug("Introspected schema", zap.Int("tables", m.Len()))
	return m, nil
}

// filterTables keeps the store's table order.
func filterTables(allTables []string, tableFilters map[string][]string) []string {
	if len(tableFilters) == 0 {
		return allTables
	}
	filtered := make([]string, 0, len(tableFilters))
	for _, table := range allTables {
		if _, ok := tableFilters[table]; ok {
			filtered = append(filtered, table)
		}
	}
	return filtered
}

func filterColumns(tableName string, allColumns []ColumnInfo, tableFilters map[string][]string) []ColumnInfo {
	specificColumnFilters := tableFilters[tableName]
	if len(specificColumnFilters) == 0 {
		return allColumns
	}
	allowed := make(map[string]bool, len(specificColumnFilters))
	for _, colName := range specificColumnFilters {
		allowed[colName] = true
	}
	filtered := make([]ColumnInfo, 0, len(specificColumnFilters))
	for _, col := range allColumns {
		if allowed[col.Name] {
			filtered = append(filtered, col)
		}
	}
	return filtered
}
