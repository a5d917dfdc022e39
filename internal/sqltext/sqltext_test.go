package sqltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClause(t *testing.T) {
	const full = "SELECT COUNT(*) FROM orders WHERE amount > 100 GROUP BY customer ORDER BY customer LIMIT 5"

	tests := []struct {
		name    string
		sql     string
		keyword string
		want    string
		wantOK  bool
	}{
		{name: "from stops at where", sql: full, keyword: "FROM", want: "orders", wantOK: true},
		{name: "where stops at group by", sql: full, keyword: "WHERE", want: "amount > 100", wantOK: true},
		{name: "group by stops at order by", sql: full, keyword: "GROUP BY", want: "customer", wantOK: true},
		{name: "order by stops at limit", sql: full, keyword: "ORDER BY", want: "customer", wantOK: true},
		{name: "limit runs to end", sql: full, keyword: "LIMIT", want: "5", wantOK: true},
		{name: "absent clause", sql: full, keyword: "HAVING", wantOK: false},
		{name: "lower case and extra spaces", sql: "select a from t group   by a having count(*) > 1", keyword: "GROUP BY", want: "a", wantOK: true},
		{name: "having runs to end", sql: "select a from t group by a having count(*) > 1", keyword: "having", want: "count(*) > 1", wantOK: true},
		{name: "newlines count as whitespace", sql: "SELECT *\nFROM t\nORDER\nBY x", keyword: "ORDER BY", want: "x", wantOK: true},
		{name: "word bounded", sql: "SELECT limited FROM t", keyword: "LIMIT", wantOK: false},
		{name: "from only", sql: "SELECT * FROM t", keyword: "FROM", want: "t", wantOK: true},
		{name: "empty sql", sql: "", keyword: "FROM", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Clause(tt.sql, tt.keyword)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasConstruct(t *testing.T) {
	sql := "SELECT customer, COUNT(*) FROM orders GROUP BY customer"
	assert.True(t, HasConstruct(sql, "group by"))
	assert.True(t, HasConstruct(sql, " COUNT "))
	assert.False(t, HasConstruct(sql, "HAVING"))
	assert.False(t, HasConstruct(sql, "nonexistent-construct"))
}

func TestConstructs(t *testing.T) {
	got := Constructs("SELECT c, COUNT(*) FROM t GROUP BY c HAVING COUNT(*) > 1")
	assert.Equal(t, []string{"GROUP BY", "HAVING", "COUNT"}, got)

	assert.Empty(t, Constructs("SELECT * FROM t"))
	assert.Equal(t, []string{"ORDER BY", "LIMIT"}, Constructs("SELECT * FROM t ORDER BY a DESC LIMIT 10"))
}

func TestLeadingKeyword(t *testing.T) {
	assert.Equal(t, "SELECT", LeadingKeyword("  select * from t"))
	assert.Equal(t, "DELETE", LeadingKeyword("delete from t"))
	assert.Equal(t, "", LeadingKeyword("   "))
}

func TestPlaceholders(t *testing.T) {
	tmpl := "SELECT * FROM t WHERE a BETWEEN {numeric_low} AND {numeric_high} ORDER BY a {order}"
	assert.Equal(t, []string{"numeric_low", "numeric_high", "order"}, Placeholders(tmpl))
	assert.True(t, HasPlaceholder(tmpl))
	assert.False(t, HasPlaceholder("SELECT * FROM t WHERE a = '{'"))
	assert.Empty(t, Placeholders("SELECT 1"))
}
