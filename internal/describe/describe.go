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

// Package describe narrates a SQL string clause by clause in plain English.
package describe

import (
	"regexp"
	"strings"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/sqltext"
)

var verbs = map[string]string{
	"SELECT": "retrieves",
	"INSERT": "inserts",
	"UPDATE": "updates",
	"DELETE": "deletes",
}

var (
	selectList    = regexp.MustCompile(`(?is)^\s*SELECT\s+(.*?)\s+FROM\b`)
	countDistinct = regexp.MustCompile(`(?is)^COUNT\s*\(\s*DISTINCT\s+([^()]+?)\s*\)\s*$`)
	countAny      = regexp.MustCompile(`(?is)^COUNT\s*\([^()]*\)\s*$`)
	leadingDigits = regexp.MustCompile(`^\d+`)
)

// aggregates maps a select list made of a single aggregate to its phrase.
var aggregates = []struct {
	pattern *regexp.Regexp
	phrase  string
}{
	{regexp.MustCompile(`(?is)^SUM\s*\(\s*([^()]+?)\s*\)\s*$`), "the sum of "},
	{regexp.MustCompile(`(?is)^AVG\s*\(\s*([^()]+?)\s*\)\s*$`), "the average of "},
	{regexp.MustCompile(`(?is)^MAX\s*\(\s*([^()]+?)\s*\)\s*$`), "the maximum value of "},
	{regexp.MustCompile(`(?is)^MIN\s*\(\s*([^()]+?)\s*\)\s*$`), "the minimum value of "},
}

var clausePhrases = []struct {
	keyword string
	phrase  string
}{
	{"WHERE", " where "},
	{"GROUP BY", " grouped by "},
	{"HAVING", " having "},
	{"ORDER BY", " ordered by "},
}

// Describe returns a one-sentence description of sql. Recognized clauses are echoed in order and
// missing clauses are skipped, so malformed input yields a partial description. constructs, when
// given, are appended as ", using A, B". The result always ends with exactly one period.
func Describe(sql string, constructs ...string) string {
	query := strings.TrimSpace(strings.TrimRight(sql, "; .\t\r\n"))

	var b strings.Builder
	b.WriteString("This query")

	if verb, ok := verbs[sqltext.LeadingKeyword(query)]; ok {
		b.WriteString(" " + verb)
	}

	if m := selectList.FindStringSubmatch(query); m != nil {
		if list := describeSelectList(strings.TrimSpace(m[1])); list != "" {
			b.WriteString(" " + list)
		}
	}

	if from, ok := sqltext.Clause(query, "FROM"); ok && from != "" {
		b.WriteString(" from the " + from + " table")
	}

	for _, c := range clausePhrases {
		if text, ok := sqltext.Clause(query, c.keyword); ok && text != "" {
			b.WriteString(c.phrase + text)
		}
	}

	if limit, ok := sqltext.Clause(query, "LIMIT"); ok && limit != "" {
		if n := leadingDigits.FindString(limit); n != "" {
			limit = n
		}
		b.WriteString(" limited to " + limit + " result(s)")
	}

	if used := nonEmpty(constructs); len(used) > 0 {
		b.WriteString(", using " + strings.Join(used, ", "))
	}

	return strings.TrimRight(b.String(), " .;") + "."
}

func describeSelectList(list string) string {
	if m := countDistinct.FindStringSubmatch(list); m != nil {
		return "the count of distinct " + m[1]
	}
	if countAny.MatchString(list) {
		return "the count of rows"
	}
	for _, agg := range aggregates {
		if m := agg.pattern.FindStringSubmatch(list); m != nil {
			return agg.phrase + m[1]
		}
	}
	if list == "*" {
		return "all columns"
	}
	return list
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
