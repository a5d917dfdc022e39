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

// Package ingest reads CSV uploads into header and row form for database.Admin.ImportRows.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyFile  = errors.New("csv file is empty")
	ErrNoDataRows = errors.New("csv file has no data rows")
)

// ParseCSV reads r as CSV. The first record holds the headers; spaces in headers become
// underscores. Every data row must have as many fields as there are headers.
func ParseCSV(r io.Reader) (headers []string, rows [][]string, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv headers: %w", err)
	}

	headers = make([]string, len(first))
	seen := make(map[string]bool, len(first))
	for i, h := range first {
		name := SanitizeName(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			return nil, nil, fmt.Errorf("csv header %d is empty", i+1)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, nil, fmt.Errorf("duplicate csv header %q", name)
		}
		seen[key] = true
		headers[i] = name
	}

	rows, err = reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrNoDataRows
	}
	return headers, rows, nil
}

// TableNameFromPath derives a table name from an uploaded file name: the base name up to its first
// dot, sanitized.
func TableNameFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return SanitizeName(base)
}

// SanitizeName trims s and replaces spaces and hyphens with underscores.
func SanitizeName(s string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(s))
}
