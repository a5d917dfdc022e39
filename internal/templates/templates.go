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

// Package templates synthesizes single-table SQL templates from a classified schema.
package templates

import (
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/schema"
)

// Placeholder kinds substituted by the resolver.
const (
	Numeric     = "numeric"
	NumericLow  = "numeric_low"
	NumericHigh = "numeric_high"
	Categorical = "categorical"
	Date        = "date"
	DateStart   = "date_start"
	DateEnd     = "date_end"
	LikePattern = "like_pattern"
	Order       = "order"
)

// Kinds lists every placeholder kind.
var Kinds = []string{Numeric, NumericLow, NumericHigh, Categorical, Date, DateStart, DateEnd, LikePattern, Order}

// Template is a SQL string with {kind} placeholders, owned by one table.
type Template struct {
	SQL   string `json:"sql"`
	Table string `json:"table"`
}

func (t Template) String() string {
	return t.SQL
}

// Placeholder returns the placeholder token for kind, e.g. "{numeric}".
func Placeholder(kind string) string {
	return "{" + kind + "}"
}

// Generate returns the templates for every table in schema order, without duplicates. The output is
// a pure function of the schema.
func Generate(m *schema.SchemaMap) []Template {
	var out []Template
	seen := make(map[string]bool)
	for _, table := range m.Tables() {
		for _, sql := range forTable(table) {
			if seen[sql] {
				continue
			}
			seen[sql] = true
			out = append(out, Template{SQL: sql, Table: table.Name})
		}
	}
	return out
}

func forTable(table schema.TableInfo) []string {
	t := table.Name
	numeric := table.Numeric()
	categorical := table.Categorical()
	dates := table.DateLike()

	var sqls []string
	add := func(format string, args ...any) {
		sqls = append(sqls, fmt.Sprintf(format, args...))
	}

	add("SELECT * FROM %s LIMIT 10", t)

	if len(numeric) > 0 && len(categorical) > 0 {
		c, m := categorical[0].Name, measure(numeric)
		add("SELECT %s, SUM(%s) FROM %s GROUP BY %s LIMIT 5", c, m, t, c)
		add("SELECT %s, AVG(%s) FROM %s GROUP BY %s ORDER BY AVG(%s) DESC LIMIT 5", c, m, t, c, m)
		add("SELECT * FROM %s WHERE %s = %s AND %s > %s", t, c, Placeholder(Categorical), m, Placeholder(Numeric))
	}

	if len(numeric) >= 2 {
		add("SELECT * FROM %s WHERE %s BETWEEN %s AND %s", t, measure(numeric), Placeholder(NumericLow), Placeholder(NumericHigh))
	}

	if len(categorical) >= 2 {
		c1, c2 := categorical[0].Name, categorical[1].Name
		add("SELECT %s, %s, COUNT(*) FROM %s GROUP BY %s, %s ORDER BY COUNT(*) DESC LIMIT 10", c1, c2, t, c1, c2)
	}

	if len(numeric) > 0 {
		m := measure(numeric)
		add("SELECT MAX(%s) FROM %s", m, t)
		add("SELECT MIN(%s) FROM %s", m, t)
		add("SELECT AVG(%s) FROM %s", m, t)
	}

	if len(categorical) > 0 {
		c := categorical[0].Name
		add("SELECT DISTINCT %s FROM %s", c, t)
		add("SELECT %s, COUNT(*) FROM %s GROUP BY %s HAVING COUNT(*) > 1", c, t, c)
		add("SELECT * FROM %s WHERE %s LIKE %s", t, c, Placeholder(LikePattern))
	}

	if len(numeric)+len(categorical) > 0 {
		first := append(append([]schema.ColumnInfo{}, numeric...), categorical...)[0].Name
		add("SELECT * FROM %s ORDER BY %s %s LIMIT 10", t, first, Placeholder(Order))
	}

	if len(dates) > 0 {
		d := dates[0].Name
		add("SELECT * FROM %s WHERE %s = %s", t, d, Placeholder(Date))
		if len(dates) >= 2 {
			add("SELECT * FROM %s WHERE %s BETWEEN %s AND %s", t, d, Placeholder(DateStart), Placeholder(DateEnd))
		}
	}

	return sqls
}

// measure picks the column aggregated and compared by the numeric templates: the first numeric
// column that is not an identifier, else the first numeric column.
func measure(numeric []schema.ColumnInfo) string {
	for _, c := range numeric {
		if !isIdentifier(c.Name) {
			return c.Name
		}
	}
	return numeric[0].Name
}

func isIdentifier(name string) bool {
	n := strings.ToLower(name)
	return n == "id" || strings.HasSuffix(n, "_id")
}
