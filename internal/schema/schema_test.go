package schema

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/database"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/database/dbtest"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		declared string
		want     ColumnClass
	}{
		{"int", Numeric},
		{"INT(11)", Numeric},
		{"bigint unsigned", Numeric},
		{"tinyint", Numeric},
		{"decimal(10,2)", Numeric},
		{"DOUBLE", Numeric},
		{"float", Numeric},
		{"varchar(255)", Categorical},
		{"text", Categorical},
		{"date", Categorical},
		{"datetime", Categorical},
		{"", Categorical},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.declared))
		})
	}
}

func TestIsDateLike(t *testing.T) {
	assert.True(t, IsDateLike("order_date"))
	assert.True(t, IsDateLike("BirthYear"))
	assert.True(t, IsDateLike("Created_Date"))
	assert.False(t, IsDateLike("amount"))

	// Date-like is a name tag, independent of class.
	col := NewColumn("model_year", "int")
	assert.Equal(t, Numeric, col.Class)
	assert.True(t, col.DateLike)
}

func TestIntrospect(t *testing.T) {
	store := dbtest.NewStore(
		dbtest.Table{Name: "orders", Columns: []database.ColumnInfo{
			{Name: "order_id", DataType: "int"},
			{Name: "customer", DataType: "varchar"},
			{Name: "amount", DataType: "decimal"},
			{Name: "order_date", DataType: "date"},
		}},
		dbtest.Table{Name: "customers", Columns: []database.ColumnInfo{
			{Name: "id", DataType: "int"},
			{Name: "name", DataType: "varchar"},
		}},
	)
	in := NewIntrospector(store, zaptest.NewLogger(t))

	m, err := in.Introspect(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"orders", "customers"}, m.TableNames())
	orders, ok := m.Table("orders")
	require.True(t, ok)
	assert.Equal(t, []string{"order_id", "customer", "amount", "order_date"}, orders.ColumnNames())
	assert.Len(t, orders.Numeric(), 2)
	assert.Len(t, orders.Categorical(), 2)
	require.Len(t, orders.DateLike(), 1)
	assert.Equal(t, "order_date", orders.DateLike()[0].Name)
	assert.Equal(t, []string{"order_id", "customer", "amount", "order_date", "id", "name"}, m.ColumnNames())
}

func TestIntrospectWithFilters(t *testing.T) {
	store := dbtest.Orders()
	in := NewIntrospector(store, nil)

	m, err := in.Introspect(context.Background(), map[string][]string{"orders": {"amount", "customer"}})
	require.NoError(t, err)
	orders, ok := m.Table("orders")
	require.True(t, ok)
	// Ordinal order is kept regardless of filter order.
	assert.Equal(t, []string{"customer", "amount"}, orders.ColumnNames())

	m, err = in.Introspect(context.Background(), map[string][]string{"missing": nil})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestIntrospectErrors(t *testing.T) {
	t.Run("store unreachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		store := dbtest.Orders()
		store.ListTablesErr = cause

		_, err := NewIntrospector(store, nil).Introspect(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, IsSchemaUnavailable(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("describe fails", func(t *testing.T) {
		store := dbtest.Orders()
		store.ListColumnsErr = errors.New("permission denied")

		_, err := NewIntrospector(store, nil).Introspect(context.Background(), nil)
		assert.True(t, IsSchemaUnavailable(err))
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := NewIntrospector(dbtest.Orders(), nil).DescribeTable(context.Background(), "ghost")
		assert.True(t, IsSchemaUnavailable(err))
		assert.ErrorIs(t, err, ErrTableNotFound)
	})
}

func TestSchemaMapAddReplaces(t *testing.T) {
	m := NewSchemaMap(
		TableInfo{Name: "a"},
		TableInfo{Name: "b"},
	)
	m.Add(TableInfo{Name: "a", Columns: []ColumnInfo{NewColumn("x", "int")}})

	assert.Equal(t, []string{"a", "b"}, m.TableNames())
	a, _ := m.Table("a")
	assert.Len(t, a.Columns, 1)

	var nilMap *SchemaMap
	assert.Equal(t, 0, nilMap.Len())
	_, ok := nilMap.Table("a")
	assert.False(t, ok)
}

func TestModelInput(t *testing.T) {
	m := NewSchemaMap(
		TableInfo{Name: "employees", Columns: []ColumnInfo{NewColumn("employee_id", "int"), NewColumn("name", "varchar")}},
		TableInfo{Name: "departments", Columns: []ColumnInfo{NewColumn("department_name", "text")}},
	)

	raw, err := m.ModelInput("hr")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "hr", doc["db_id"])
	assert.Equal(t, []any{"employees", "departments"}, doc["table_names"])

	columns := doc["columns"].(map[string]any)
	first := columns["0"].([]any)
	require.Len(t, first, 2)
	assert.Equal(t, map[string]any{"column_name": "employee_id", "column_type": "number"}, first[0])
	assert.Equal(t, map[string]any{"column_name": "name", "column_type": "text"}, first[1])
	assert.Equal(t, []any{}, doc["primary_keys"])
}

func TestTableInfoJSON(t *testing.T) {
	out, err := json.Marshal(TableInfo{Name: "orders", Columns: []ColumnInfo{NewColumn("order_date", "date"), NewColumn("amount", "decimal")}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"orders","columns":[
		{"name":"order_date","declared_type":"date","class":"categorical","date_like":true},
		{"name":"amount","declared_type":"decimal","class":"numeric","date_like":false}]}`, string(out))
}
