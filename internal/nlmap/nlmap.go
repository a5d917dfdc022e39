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

// Package nlmap maps free-text questions onto SQL by matching fixed phrase patterns and picking
// column names by string similarity. The mapping is best effort.
package nlmap

import (
	"context"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/logging"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/schema"
)

// NoMappingFound is returned when no pattern applies to a question.
const NoMappingFound = "Sorry, I couldn't generate a SQL query for that question."

// SimilarityThreshold is the ratio a token must exceed to be matched to a column.
const SimilarityThreshold = 0.6

// PhrasePattern pairs a question shape with its SQL. Slots are {A}, {B}, {C} and {N}; the SQL may
// also use {table}.
type PhrasePattern struct {
	Text string
	SQL  string
}

// Patterns are tried in order; the first eligible pattern that can be filled wins. {A} and {B} are
// only ever filled with column names, so a comparison, range or LIKE question whose operand is a
// literal ("amount greater than 100") does not map.
var Patterns = []PhrasePattern{
	{"total {A} by {B}", "SELECT {B}, SUM({A}) FROM {table} GROUP BY {B}"},
	{"average {A} by {B}", "SELECT {B}, AVG({A}) FROM {table} GROUP BY {B}"},
	{"count of {A} by {B}", "SELECT {B}, COUNT({A}) FROM {table} GROUP BY {B}"},
	{"list all {A}", "SELECT DISTINCT {A} FROM {table}"},
	{"top {N} {A} by {B}", "SELECT {A}, {B} FROM {table} ORDER BY {B} DESC LIMIT {N}"},
	{"find {A} where {B} is {C}", "SELECT {A} FROM {table} WHERE {B} = '{C}'"},
	{"maximum {A}", "SELECT MAX({A}) FROM {table}"},
	{"minimum {A}", "SELECT MIN({A}) FROM {table}"},
	{"{A} greater than {B}", "SELECT * FROM {table} WHERE {A} > {B}"},
	{"{A} less than {B}", "SELECT * FROM {table} WHERE {A} < {B}"},
	{"{A} between {B} and {C}", "SELECT * FROM {table} WHERE {A} BETWEEN {B} AND {C}"},
	{"{A} like {B}", "SELECT * FROM {table} WHERE {A} LIKE '%{B}%'"},
	{"count distinct {A}", "SELECT COUNT(DISTINCT {A}) FROM {table}"},
	{"group {A} by {B}", "SELECT {B}, COUNT(*) FROM {table} GROUP BY {B}"},
	{"sum of {A}", "SELECT SUM({A}) FROM {table}"},
}

var slots = []string{"{A}", "{B}", "{C}", "{N}"}

// IsNoMapping reports whether result is the no-mapping sentinel.
func IsNoMapping(result string) bool {
	return result == NoMappingFound
}

// Similarity returns the Ratcliff/Obershelp ratio of a and b over characters, in [0, 1].
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Introspector is the schema source used by the Mapper.
type Introspector interface {
	Introspect(ctx context.Context, filters map[string][]string) (*schema.SchemaMap, error)
}

type Mapper struct {
	introspector Introspector
	logger       *zap.Logger
}

func New(in Introspector, logger *zap.Logger) *Mapper {
	return &Mapper{introspector: in, logger: logging.OrNop(logger)}
}

// Map introspects the live schema and maps question onto SQL, or returns NoMappingFound. Only
// schema failures are errors.
func (mp *Mapper) Map(ctx context.Context, question string) (string, error) {
	m, err := mp.introspector.Introspect(ctx, nil)
	if err != nil {
		return "", err
	}
	sql := MapQuestion(question, m)
	if IsNoMapping(sql) {
		mp.logger.Info("No phrase pattern matched question", zap.String("question", question))
	} else {
		mp.logger.Debug("Mapped question", zap.String("question", question), zap.String("sql", sql))
	}
	return sql, nil
}

// MapQuestion is the pure mapping core. It is deterministic for a given question and schema.
func MapQuestion(question string, m *schema.SchemaMap) string {
	q := strings.ToLower(question)
	tokens := tokenize(q)
	columns := m.ColumnNames()
	if len(tokens) == 0 || len(columns) == 0 {
		return NoMappingFound
	}

	for _, p := range Patterns {
		literals := literalWords(p.Text)
		if !eligible(q, literals) {
			continue
		}
		if sql, ok := fill(p, literals, tokens, columns, m); ok {
			return sql
		}
	}
	return NoMappingFound
}

func tokenize(q string) []string {
	var tokens []string
	for _, f := range strings.Fields(q) {
		t := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func literalWords(text string) []string {
	var words []string
	for _, w := range strings.Fields(text) {
		if !isSlot(w) {
			words = append(words, w)
		}
	}
	return words
}

func isSlot(w string) bool {
	for _, s := range slots {
		if w == s {
			return true
		}
	}
	return false
}

// eligible requires every literal word to occur somewhere in the lower-cased question.
func eligible(q string, literals []string) bool {
	for _, w := range literals {
		if !strings.Contains(q, w) {
			return false
		}
	}
	return true
}

// bestColumn returns the column most similar to token, if any exceeds the threshold. Ties go to the
// earliest column in schema order.
func bestColumn(token string, columns []string) (string, bool) {
	best, bestScore := "", -1.0
	for _, c := range columns {
		if score := Similarity(token, strings.ToLower(c)); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore > SimilarityThreshold
}

func fill(p PhrasePattern, literals, tokens, columns []string, m *schema.SchemaMap) (string, bool) {
	var a, b, c, n string
	aIdx, bIdx := -1, -1

	for i, tok := range tokens {
		if col, ok := bestColumn(tok, columns); ok {
			a, aIdx = col, i
			break
		}
	}
	if a == "" {
		return "", false
	}

	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		if i == aIdx || tok == tokens[aIdx] || tok == strings.ToLower(a) {
			continue
		}
		if col, ok := bestColumn(tok, columns); ok {
			b, bIdx = col, i
			break
		}
	}

	vocabulary := make(map[string]bool, len(literals))
	for _, w := range literals {
		vocabulary[w] = true
	}
	for i, tok := range tokens {
		if i == aIdx || i == bIdx || vocabulary[tok] || tok == strings.ToLower(a) || (b != "" && tok == strings.ToLower(b)) {
			continue
		}
		c = tok
		break
	}

	for _, tok := range tokens {
		if isDigits(tok) {
			n = tok
			break
		}
	}

	values := map[string]string{"{A}": a, "{B}": b, "{C}": escapeQuotes(c), "{N}": n}
	for slot, v := range values {
		if v == "" && strings.Contains(p.SQL, slot) {
			return "", false
		}
	}

	pick := []string{a}
	if b != "" {
		pick = append(pick, b)
	}
	table := selectTable(pick, m)
	if table == "" {
		return "", false
	}

	r := strings.NewReplacer("{A}", a, "{B}", b, "{C}", values["{C}"], "{N}", n, "{table}", table)
	return r.Replace(p.SQL), true
}

// selectTable returns the table whose columns overlap most with picked. Ties go to the earliest table.
func selectTable(picked []string, m *schema.SchemaMap) string {
	best, bestScore := "", -1
	for _, t := range m.Tables() {
		score := 0
		for _, col := range picked {
			if _, ok := t.Column(col); ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = t.Name, score
		}
	}
	return best
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
