package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/schema"
)

func ordersSchema() *schema.SchemaMap {
	return schema.NewSchemaMap(schema.TableInfo{
		Name: "orders",
		Columns: []schema.ColumnInfo{
			schema.NewColumn("order_id", "int"),
			schema.NewColumn("customer", "varchar"),
			schema.NewColumn("amount", "decimal"),
			schema.NewColumn("order_date", "date"),
		},
	})
}

func sqls(ts []Template) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.SQL
	}
	return out
}

func TestGenerateOrders(t *testing.T) {
	got := sqls(Generate(ordersSchema()))

	want := []string{
		"SELECT * FROM orders LIMIT 10",
		"SELECT customer, SUM(amount) FROM orders GROUP BY customer LIMIT 5",
		"SELECT customer, AVG(amount) FROM orders GROUP BY customer ORDER BY AVG(amount) DESC LIMIT 5",
		"SELECT * FROM orders WHERE customer = {categorical} AND amount > {numeric}",
		"SELECT * FROM orders WHERE amount BETWEEN {numeric_low} AND {numeric_high}",
		"SELECT customer, order_date, COUNT(*) FROM orders GROUP BY customer, order_date ORDER BY COUNT(*) DESC LIMIT 10",
		"SELECT MAX(amount) FROM orders",
		"SELECT MIN(amount) FROM orders",
		"SELECT AVG(amount) FROM orders",
		"SELECT DISTINCT customer FROM orders",
		"SELECT customer, COUNT(*) FROM orders GROUP BY customer HAVING COUNT(*) > 1",
		"SELECT * FROM orders WHERE customer LIKE {like_pattern}",
		"SELECT * FROM orders ORDER BY order_id {order} LIMIT 10",
		"SELECT * FROM orders WHERE order_date = {date}",
	}
	assert.Equal(t, want, got)
}

func TestGenerateIsDeterministic(t *testing.T) {
	assert.Equal(t, Generate(ordersSchema()), Generate(ordersSchema()))
}

func TestGenerateRules(t *testing.T) {
	tests := []struct {
		name     string
		columns  []schema.ColumnInfo
		contains []string
		absent   []string
	}{
		{
			name:     "numeric only",
			columns:  []schema.ColumnInfo{schema.NewColumn("price", "float")},
			contains: []string{"SELECT MAX(price) FROM t", "SELECT * FROM t ORDER BY price {order} LIMIT 10"},
			absent:   []string{"GROUP BY", "DISTINCT", "BETWEEN", "LIKE"},
		},
		{
			name:     "categorical only",
			columns:  []schema.ColumnInfo{schema.NewColumn("name", "varchar"), schema.NewColumn("city", "text")},
			contains: []string{"SELECT DISTINCT name FROM t", "SELECT name, city, COUNT(*) FROM t GROUP BY name, city ORDER BY COUNT(*) DESC LIMIT 10"},
			absent:   []string{"SUM(", "MAX(", "{numeric"},
		},
		{
			name: "two date columns",
			columns: []schema.ColumnInfo{
				schema.NewColumn("start_date", "date"),
				schema.NewColumn("end_date", "date"),
			},
			contains: []string{
				"SELECT * FROM t WHERE start_date = {date}",
				"SELECT * FROM t WHERE start_date BETWEEN {date_start} AND {date_end}",
			},
		},
		{
			name:     "identifier columns only",
			columns:  []schema.ColumnInfo{schema.NewColumn("id", "int"), schema.NewColumn("user_id", "int"), schema.NewColumn("tag", "varchar")},
			contains: []string{"SELECT tag, SUM(id) FROM t GROUP BY tag LIMIT 5", "SELECT * FROM t WHERE id BETWEEN {numeric_low} AND {numeric_high}"},
		},
		{
			name:     "no columns",
			columns:  nil,
			contains: []string{"SELECT * FROM t LIMIT 10"},
			absent:   []string{"ORDER BY"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(schema.NewSchemaMap(schema.TableInfo{Name: "t", Columns: tt.columns}))
			joined := strings.Join(sqls(got), "\n")
			for _, want := range tt.contains {
				assert.Contains(t, sqls(got), want)
			}
			for _, bad := range tt.absent {
				assert.NotContains(t, joined, bad)
			}
			for _, tmpl := range got {
				assert.Equal(t, "t", tmpl.Table)
			}
		})
	}
}

func TestGenerateSumAndAvgForMixedTables(t *testing.T) {
	m := schema.NewSchemaMap(
		schema.TableInfo{Name: "tags", Columns: []schema.ColumnInfo{schema.NewColumn("label", "varchar")}},
		schema.TableInfo{Name: "sales", Columns: []schema.ColumnInfo{
			schema.NewColumn("region", "varchar"),
			schema.NewColumn("total", "double"),
		}},
	)
	got := Generate(m)
	require.NotEmpty(t, got)
	assert.Equal(t, "tags", got[0].Table)

	var sum, avg bool
	for _, tmpl := range got {
		if tmpl.Table != "sales" {
			continue
		}
		sum = sum || tmpl.SQL == "SELECT region, SUM(total) FROM sales GROUP BY region LIMIT 5"
		avg = avg || tmpl.SQL == "SELECT region, AVG(total) FROM sales GROUP BY region ORDER BY AVG(total) DESC LIMIT 5"
	}
	assert.True(t, sum, "SUM GROUP BY template missing")
	assert.True(t, avg, "AVG GROUP BY ORDER DESC template missing")
}

func TestGenerateDeduplicates(t *testing.T) {
	m := schema.NewSchemaMap(
		schema.TableInfo{Name: "t", Columns: []schema.ColumnInfo{schema.NewColumn("a", "int")}},
	)
	got := Generate(m)
	seen := map[string]bool{}
	for _, tmpl := range got {
		assert.False(t, seen[tmpl.SQL], "duplicate %q", tmpl.SQL)
		seen[tmpl.SQL] = true
	}
}
