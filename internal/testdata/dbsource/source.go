// Package dbsource fills fixture values from rows of the database behind the API.
package dbsource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres

	"routekit/internal/config"
)

// Column describes a table column
type Column struct {
	Name      string
	Type      string
	Nullable  bool
	MaxLength int
}

// Source reads sample values from a SQL database
type Source struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the configured database and pings it
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver, dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Type, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Source{db: db, dialect: dialects[cfg.Type]}, nil
}

// Close closes the database connection
func (s *Source) Close() error {
	return s.db.Close()
}

// DSN returns the driver name and connection string for cfg
func DSN(cfg config.DatabaseConfig) (string, string, error) {
	switch cfg.Type {
	case "postgres":
		return "postgres", fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name), nil
	case "mysql":
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name), nil
	case "sqlserver":
		return "sqlserver", fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name), nil
	default:
		return "", "", fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Columns lists the columns of table in name order
func (s *Source) Columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.columnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			col       Column
			nullable  string
			maxLength sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &maxLength); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		if maxLength.Valid {
			col.MaxLength = int(maxLength.Int64)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// LookupValue returns the value of column in one non-null row of table.
// A table without such a row yields nil.
func (s *Source) LookupValue(ctx context.Context, table, column string) (any, error) {
	var value any
	err := s.db.QueryRowContext(ctx, s.dialect.lookupQuery(table, column)).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", table, column, err)
	}
	if b, ok := value.([]byte); ok {
		return string(b), nil
	}
	return value, nil
}

// dialect holds what differs between the supported databases
type dialect struct {
	placeholder string
	quote       func(string) string
	top         bool
}

var dialects = map[string]dialect{
	"postgres": {
		placeholder: "$1",
		quote:       func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
	},
	"mysql": {
		placeholder: "?",
		quote:       func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
	},
	"sqlserver": {
		placeholder: "@p1",
		quote:       func(s string) string { return "[" + strings.ReplaceAll(s, "]", "]]") + "]" },
		top:         true,
	},
}

func (d dialect) columnsQuery() string {
	return `
		SELECT c.column_name, c.data_type, c.is_nullable, c.character_maximum_length
		FROM information_schema.columns c
		WHERE LOWER(c.table_name) = LOWER(` + d.placeholder + `)
		ORDER BY c.column_name`
}

func (d dialect) lookupQuery(table, column string) string {
	col := d.quote(column)
	if d.top {
		return fmt.Sprintf("SELECT TOP 1 %s FROM %s WHERE %s IS NOT NULL", col, d.quote(table), col)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT 1", col, d.quote(table), col)
}
