package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type modelColumn struct {
	ColumnName string `json:"column_name"`
	ColumnType string `json:"column_type"`
}

type modelInput struct {
	DBID        string                   `json:"db_id"`
	TableNames  []string                 `json:"table_names"`
	Columns     map[string][]modelColumn `json:"columns"`
	PrimaryKeys []int                    `json:"primary_keys"`
	ForeignKeys map[string][][]int       `json:"foreign_keys"`
}

// ModelInput renders the schema as the JSON document consumed by the query generation model.
// Columns are keyed by table position; key metadata is not introspected, so both key lists are empty.
func (m *SchemaMap) ModelInput(dbName string) ([]byte, error) {
	in := modelInput{
		DBID:        dbName,
		TableNames:  m.TableNames(),
		Columns:     make(map[string][]modelColumn, m.Len()),
		PrimaryKeys: []int{},
		ForeignKeys: map[string][][]int{},
	}
	if in.TableNames == nil {
		in.TableNames = []string{}
	}
	for i, t := range m.Tables() {
		cols := make([]modelColumn, len(t.Columns))
		for j, c := range t.Columns {
			colType := "text"
			if c.Class == Numeric {
				colType = "number"
			}
			cols[j] = modelColumn{ColumnName: c.Name, ColumnType: colType}
		}
		in.Columns[strconv.Itoa(i)] = cols
	}

	out, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema for model input: %w", err)
	}
	return out, nil
}
