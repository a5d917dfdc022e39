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

// Package sqltext locates SQL clause keywords positionally. It does not parse SQL; it finds
// keyword boundaries with bounded, case-insensitive pattern search.
package sqltext

import (
	"regexp"
	"strings"
	"sync"
)

// ClauseBoundaries is the fixed precedence list of keywords that end a clause.
var ClauseBoundaries = []string{"WHERE", "GROUP BY", "HAVING", "ORDER BY", "LIMIT"}

// KnownConstructs lists the constructs reported by Constructs, in reporting order.
var KnownConstructs = []string{
	"WHERE", "GROUP BY", "HAVING", "ORDER BY", "LIMIT",
	"DISTINCT", "LIKE", "BETWEEN", "COUNT", "SUM", "AVG", "MAX", "MIN",
}

var (
	patternCache sync.Map // keyword -> *regexp.Regexp
	placeholder  = regexp.MustCompile(`\{([A-Za-z_]+)\}`)
)

// keywordPattern returns a case-insensitive, word-bounded pattern for keyword. Multi-word keywords
// accept any run of whitespace between words.
func keywordPattern(keyword string) *regexp.Regexp {
	key := strings.ToUpper(strings.Join(strings.Fields(keyword), " "))
	if re, ok := patternCache.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	words := strings.Fields(key)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	re := regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
	patternCache.Store(key, re)
	return re
}

// Find returns the byte offsets of the first occurrence of keyword in sql at or after from.
func Find(sql, keyword string, from int) (start, end int, ok bool) {
	if from < 0 {
		from = 0
	}
	if from > len(sql) || strings.TrimSpace(keyword) == "" {
		return 0, 0, false
	}
	loc := keywordPattern(keyword).FindStringIndex(sql[from:])
	if loc == nil {
		return 0, 0, false
	}
	return from + loc[0], from + loc[1], true
}

// Clause returns the trimmed text following the first occurrence of keyword, up to the earliest
// clause boundary keyword after it or the end of the string. ok is false when keyword is absent.
func Clause(sql, keyword string) (string, bool) {
	_, end, ok := Find(sql, keyword, 0)
	if !ok {
		return "", false
	}
	stop := len(sql)
	for _, boundary := range ClauseBoundaries {
		if s, _, found := Find(sql, boundary, end); found && s < stop {
			stop = s
		}
	}
	return strings.TrimSpace(sql[end:stop]), true
}

// Has reports whether keyword occurs in sql as a whole word.
func Has(sql, keyword string) bool {
	_, _, ok := Find(sql, keyword, 0)
	return ok
}

// HasConstruct reports whether construct occurs in sql, ignoring case. It is a plain substring test.
func HasConstruct(sql, construct string) bool {
	return strings.Contains(strings.ToUpper(sql), strings.ToUpper(strings.TrimSpace(construct)))
}

// Constructs returns the known constructs present in sql, in KnownConstructs order.
func Constructs(sql string) []string {
	var found []string
	for _, c := range KnownConstructs {
		if Has(sql, c) {
			found = append(found, c)
		}
	}
	return found
}

// LeadingKeyword returns the first word of sql in upper case, or "" for blank input.
func LeadingKeyword(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	word := fields[0]
	if i := strings.IndexAny(word, "(;"); i >= 0 {
		word = word[:i]
	}
	return strings.ToUpper(word)
}

// Placeholders returns the placeholder kinds in text, in order of appearance. Repeats are kept.
func Placeholders(text string) []string {
	matches := placeholder.FindAllStringSubmatch(text, -1)
	kinds := make([]string, 0, len(matches))
	for _, m := range matches {
		kinds = append(kinds, m[1])
	}
	return kinds
}

// HasPlaceholder reports whether any {kind} placeholder remains in text.
func HasPlaceholder(text string) bool {
	return placeholder.MatchString(text)
}

// ReplacePlaceholders replaces each placeholder with replace(i, kind), where i counts placeholders
// from zero in order of appearance.
func ReplacePlaceholders(text string, replace func(i int, kind string) string) string {
	i := 0
	return placeholder.ReplaceAllStringFunc(text, func(token string) string {
		kind := token[1 : len(token)-1]
		v := replace(i, kind)
		i++
		return v
	})
}
