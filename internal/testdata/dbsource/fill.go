package dbsource

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"routekit/internal/testdata"
	"routekit/internal/types"
	"routekit/pkg/endpoint"
)

// ValueSource is the part of Source that Filler needs
type ValueSource interface {
	Columns(ctx context.Context, table string) ([]Column, error)
	LookupValue(ctx context.Context, table, column string) (any, error)
}

// Filler replaces nil fixture values with values read from a ValueSource
type Filler struct {
	src     ValueSource
	log     zerolog.Logger
	columns map[string][]Column
}

// NewFiller creates a Filler reading from src
func NewFiller(src ValueSource, log zerolog.Logger) *Filler {
	return &Filler{src: src, log: log, columns: make(map[string][]Column)}
}

// FillAll fills every fixture in data whose key names a known operation and
// returns how many values were set
func (f *Filler) FillAll(ctx context.Context, ops []types.Operation, data *testdata.TestData) (int, error) {
	total := 0
	for _, op := range ops {
		fixture, ok := data.Endpoints[op.Key()]
		if !ok {
			continue
		}
		filled, n, err := f.Fill(ctx, op, fixture)
		if err != nil {
			return total, err
		}
		data.Endpoints[op.Key()] = filled
		total += n
	}
	return total, nil
}

// Fill looks up values for the nil params, body and form-data entries of
// fixture in the table named by the operation's path
func (f *Filler) Fill(ctx context.Context, op types.Operation, fixture testdata.Fixture) (testdata.Fixture, int, error) {
	table := TableForPath(op.Shape.URITemplate)
	if table == "" {
		return fixture, 0, nil
	}
	columns, err := f.tableColumns(ctx, table)
	if err != nil {
		return fixture, 0, err
	}
	if len(columns) == 0 {
		f.log.Debug().Str("table", table).Str("operation", op.ID).Msg("no matching table")
		return fixture, 0, nil
	}

	total := 0
	for _, values := range []*endpoint.Values{fixture.Params, fixture.Body, fixture.FormData} {
		n, err := f.fillValues(ctx, table, columns, values)
		if err != nil {
			return fixture, total, err
		}
		total += n
	}
	return fixture, total, nil
}

func (f *Filler) fillValues(ctx context.Context, table string, columns []Column, values *endpoint.Values) (int, error) {
	filled := 0
	for _, key := range values.Keys() {
		if val, _ := values.Get(key); val != nil {
			continue
		}
		column, ok := MatchColumn(columns, key)
		if !ok {
			continue
		}
		val, err := f.src.LookupValue(ctx, table, column.Name)
		if err != nil {
			return filled, err
		}
		if val == nil {
			continue
		}
		values.Set(key, val)
		filled++
		f.log.Debug().Str("key", key).Str("column", table+"."+column.Name).Msg("filled value")
	}
	return filled, nil
}

func (f *Filler) tableColumns(ctx context.Context, table string) ([]Column, error) {
	if cols, ok := f.columns[table]; ok {
		return cols, nil
	}
	cols, err := f.src.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	f.columns[table] = cols
	return cols, nil
}

// TableForPath guesses the table behind a URI template from its last
// literal segment, e.g. /users/{id}/orders -> orders
func TableForPath(uriTemplate string) string {
	parts := strings.Split(strings.Trim(uriTemplate, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if part == "" || strings.HasPrefix(part, "{") {
			continue
		}
		return strings.ToLower(part)
	}
	return ""
}

// MatchColumn finds the column for a request key: an exact case-insensitive
// match, then the snake_case form, then "id" for keys ending in Id
func MatchColumn(columns []Column, key string) (Column, bool) {
	candidates := []string{key, endpoint.SnakeCase(key)}
	if lower := strings.ToLower(key); lower != "id" && strings.HasSuffix(lower, "id") {
		candidates = append(candidates, "id")
	}
	for _, name := range candidates {
		for _, col := range columns {
			if strings.EqualFold(col.Name, name) {
				return col, true
			}
		}
	}
	return Column{}, false
}
