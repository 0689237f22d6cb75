package toolserver

import (
	"context"
	"fmt"
)

func failure(err error) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
}

// executeSQL runs an arbitrary query against the tenant database and returns
// columns plus rows as name/value objects. Write access is a deployment
// convention; the database file is opened read-write but tools only receive
// SELECT statements from the model.
func (s *Server) executeSQL(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	query, _ := args["query"].(string)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return failure(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return failure(err)
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		scanTargets := make([]interface{}, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return failure(err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return failure(err)
	}

	return map[string]interface{}{
		"success":   true,
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	}
}

// getDatabaseSchema describes every table and its columns so the model can
// write correct SQL before querying.
func (s *Server) getDatabaseSchema(ctx context.Context, _ map[string]interface{}) map[string]interface{} {
	tableRows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table'`)
	if err != nil {
		return failure(err)
	}
	defer tableRows.Close()

	var tables []string
	for tableRows.Next() {
		var name string
		if err := tableRows.Scan(&name); err != nil {
			return failure(err)
		}
		tables = append(tables, name)
	}
	if err := tableRows.Err(); err != nil {
		return failure(err)
	}

	schema := make(map[string]interface{}, len(tables))
	for _, table := range tables {
		columns, err := s.tableColumns(ctx, table)
		if err != nil {
			return failure(err)
		}
		schema[table] = columns
	}

	return map[string]interface{}{
		"success": true,
		"schema":  schema,
	}
}

func (s *Server) tableColumns(ctx context.Context, table string) ([]map[string]interface{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []map[string]interface{}
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal interface{}
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &primaryKey); err != nil {
			return nil, err
		}
		columns = append(columns, map[string]interface{}{
			"name":        name,
			"type":        colType,
			"nullable":    notNull == 0,
			"primary_key": primaryKey != 0,
		})
	}
	return columns, rows.Err()
}
