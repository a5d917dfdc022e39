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
package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadSQLStatementsFromFile returns the statements in a file. Statements end with a semicolon at the
// end of a line; lines starting with "--" are skipped.
func ReadSQLStatementsFromFile(filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return SplitSQLStatements(string(content)), nil
}

// SplitSQLStatements splits text into trimmed, non-empty statements without their final semicolon.
func SplitSQLStatements(text string) []string {
	var statements []string
	var current strings.Builder
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			current.WriteString(strings.TrimSuffix(trimmed, ";"))
			flush()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()
	return statements
}

// ReadLinesFromFile returns the non-empty lines of a file. Lines starting with "#" are skipped.
func ReadLinesFromFile(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return lines, nil
}

func GetDefaultOutputFilePath(dbName, commandName string) string {
	if dbName == "" {
		dbName = "chatdb"
	}
	switch commandName {
	case "templates":
		return fmt.Sprintf("%s_templates.sql", dbName)
	case "sample", "model-queries":
		return fmt.Sprintf("%s_queries.sql", dbName)
	default:
		return fmt.Sprintf("%s_%s.txt", dbName, commandName)
	}
}

// WriteOutputFile writes content to filePath, replacing any existing file.
func WriteOutputFile(filePath, content string) error {
	if err := os.WriteFile(filePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", filePath, err)
	}
	return nil
}

// ConfirmAction asks on out whether to run actionDescription against the database and reads the
// answer from in. Only "yes" and "y" confirm.
func ConfirmAction(in io.Reader, out io.Writer, actionDescription string) bool {
	reader := bufio.NewReader(in)
	fmt.Fprintf(out, "\n-------------------------------------------------------------\n")
	fmt.Fprintf(out, "Prepared %s.\n", actionDescription)
	fmt.Fprint(out, "Do you want to run this against the database? (yes/no): ")
	text, _ := reader.ReadString('\n')
	action := strings.TrimSpace(strings.ToLower(text))
	return action == "yes" || action == "y"
}

// ParseTablesFlag parses "t1,t2[c1,c2]" into table -> columns. A table without a column list maps
// to nil, meaning all columns.
func ParseTablesFlag(tablesFlag string) (map[string][]string, error) {
	tableColumns := make(map[string][]string)
	if tablesFlag == "" {
		return tableColumns, nil
	}

	// strip any whitespace
	tablesFlag = strings.ReplaceAll(tablesFlag, " ", "")

	for _, part := range SplitOutsideBrackets(tablesFlag) {
		if part == "" {
			continue
		}

		bracketStart := strings.Index(part, "[")
		if bracketStart == -1 {
			tableColumns[part] = nil
			continue
		}
		bracketEnd := strings.Index(part, "]")
		if bracketEnd == -1 {
			return nil, fmt.Errorf("missing closing bracket in: %s", part)
		}

		tableName := part[:bracketStart]
		if tableName == "" {
			return nil, fmt.Errorf("missing table name in: %s", part)
		}
		var columns []string
		for _, col := range strings.Split(part[bracketStart+1:bracketEnd], ",") {
			if col != "" {
				columns = append(columns, col)
			}
		}
		tableColumns[tableName] = columns
	}

	return tableColumns, nil
}

// SplitOutsideBrackets Helper function to split string by commas that are not within brackets
func SplitOutsideBrackets(s string) []string {
	var result []string
	var current strings.Builder
	inBrackets := false

	for _, char := range s {
		switch char {
		case '[':
			inBrackets = true
			current.WriteRune(char)
		case ']':
			inBrackets = false
			current.WriteRune(char)
		case ',':
			if inBrackets {
				current.WriteRune(char)
			} else {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}
