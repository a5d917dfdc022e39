package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTablesFlag(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		want    map[string][]string
		wantErr bool
	}{
		{name: "empty", flag: "", want: map[string][]string{}},
		{name: "tables only", flag: "orders, customers", want: map[string][]string{"orders": nil, "customers": nil}},
		{
			name: "columns",
			flag: "orders[customer, amount],customers",
			want: map[string][]string{"orders": {"customer", "amount"}, "customers": nil},
		},
		{name: "empty column list", flag: "orders[]", want: map[string][]string{"orders": nil}},
		{name: "missing bracket", flag: "orders[customer", wantErr: true},
		{name: "missing table", flag: "[customer]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTablesFlag(tt.flag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitOutsideBrackets(t *testing.T) {
	assert.Equal(t, []string{"a[x,y]", "b"}, SplitOutsideBrackets("a[x,y],b"))
	assert.Nil(t, SplitOutsideBrackets(""))
}

func TestSplitSQLStatements(t *testing.T) {
	text := "-- sampled queries\r\nSELECT * FROM orders;\r\nSELECT customer,\n  SUM(amount)\nFROM orders\nGROUP BY customer;\n\nSELECT 1"
	assert.Equal(t, []string{
		"SELECT * FROM orders",
		"SELECT customer,\n  SUM(amount)\nFROM orders\nGROUP BY customer",
		"SELECT 1",
	}, SplitSQLStatements(text))
	assert.Empty(t, SplitSQLStatements("  \n-- only a comment\n"))
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()

	sqlPath := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(sqlPath, []byte("SELECT 1;\nSELECT 2;\n"), 0o644))
	stmts, err := ReadSQLStatementsFromFile(sqlPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, stmts)

	linesPath := filepath.Join(dir, "questions.txt")
	require.NoError(t, os.WriteFile(linesPath, []byte("# questions\ntotal amount by customer\n\n  maximum amount  \n"), 0o644))
	lines, err := ReadLinesFromFile(linesPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"total amount by customer", "maximum amount"}, lines)

	_, err = ReadSQLStatementsFromFile(filepath.Join(dir, "missing.sql"))
	assert.Error(t, err)
	_, err = ReadLinesFromFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestWriteOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sql")
	require.NoError(t, WriteOutputFile(path, "SELECT 1;\n"))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;\n", string(got))
}

func TestGetDefaultOutputFilePath(t *testing.T) {
	assert.Equal(t, "shop_templates.sql", GetDefaultOutputFilePath("shop", "templates"))
	assert.Equal(t, "shop_queries.sql", GetDefaultOutputFilePath("shop", "sample"))
	assert.Equal(t, "chatdb_tables.txt", GetDefaultOutputFilePath("", "tables"))
}

func TestConfirmAction(t *testing.T) {
	for answer, want := range map[string]bool{"yes\n": true, "Y\n": true, "no\n": false, "": false, "maybe\n": false} {
		var out bytes.Buffer
		assert.Equal(t, want, ConfirmAction(strings.NewReader(answer), &out, "3 queries"), answer)
		assert.Contains(t, out.String(), "Prepared 3 queries.")
	}
}
