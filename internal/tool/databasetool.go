package tool

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DatabaseTool executes read-only queries against SQLite or PostgreSQL
// and formats the result set as a markdown table.
type DatabaseTool struct{}

func init() {
	Register(&DatabaseTool{})
}

func (*DatabaseTool) Name() string { return "database_tool" }

var sqlFenceRe = regexp.MustCompile("(?s)```(?:sql)?\\s*\\n(.*?)```")

func (t *DatabaseTool) Execute(ctx context.Context, input string, config map[string]any) (string, error) {
	connStr := cfgString(config, "connection_string", "")
	dbType := cfgString(config, "db_type", "")
	if dbType == "" {
		dbType = detectDBType(connStr)
	}
	rawQuery := cfgString(config, "query", "")
	if rawQuery == "" {
		rawQuery = input
	}
	query := extractSQL(rawQuery)
	if strings.TrimSpace(query) == "" {
		return "No query provided.", nil
	}

	// Read-only guard.
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return "Only SELECT queries are allowed for safety.", nil
	}

	var driver, dsn string
	switch dbType {
	case "postgresql", "postgres":
		driver, dsn = "pgx", connStr
	case "sqlite", "":
		path := cfgString(config, "db_path", "")
		if path == "" {
			path = connStr
		}
		if path == "" {
			path = "data/db/gennaro.db"
		}
		path = strings.TrimPrefix(path, "sqlite:///")
		path = strings.TrimPrefix(path, "sqlite://")
		driver, dsn = "sqlite", path
	default:
		return fmt.Sprintf("Unsupported database type: %s", dbType), nil
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Sprintf("Query error: %v", err), nil
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fmt.Sprintf("Query error: %v", err), nil
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Sprintf("Query error: %v", err), nil
	}

	var records [][]string
	for rows.Next() {
		if len(records) > 100 {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Sprintf("Query error: %v", err), nil
		}
		record := make([]string, len(columns))
		for i, v := range values {
			switch val := v.(type) {
			case nil:
				record[i] = "NULL"
			case []byte:
				record[i] = string(val)
			default:
				record[i] = fmt.Sprintf("%v", val)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return fmt.Sprintf("Query error: %v", err), nil
	}

	return formatSQLTable(columns, records), nil
}

func detectDBType(connStr string) string {
	c := strings.ToLower(connStr)
	switch {
	case strings.HasPrefix(c, "postgresql://"), strings.HasPrefix(c, "postgres://"):
		return "postgresql"
	case strings.HasPrefix(c, "mysql://"):
		return "mysql"
	case strings.HasPrefix(c, "mongodb://"), strings.HasPrefix(c, "mongodb+srv://"):
		return "mongodb"
	}
	return "sqlite"
}

func extractSQL(text string) string {
	if m := sqlFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

func formatSQLTable(columns []string, rows [][]string) string {
	if len(columns) == 0 {
		return "Query executed, no results."
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	seps := make([]string, len(columns))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")
	for i, row := range rows {
		if i >= 100 {
			fmt.Fprintf(&b, "\n... (showing first 100 of %d rows)", len(rows))
			break
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
