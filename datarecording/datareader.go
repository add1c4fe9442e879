package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// QueryParams selects, orders and pages the rows of a table.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, for example
	// "Run = ? AND Round > ?".
	Where string
	Args  []any

	// OrderBy lists the sort columns without the ORDER BY keywords, for
	// example "SimTime DESC".
	OrderBy string

	// Limit caps the number of rows returned. 0 returns all the rows.
	Limit  int
	Offset int
}

// DataReader reads recorded entries back into structs.
type DataReader interface {
	// MapTable binds a table to the struct type its rows are read into. A
	// table must be mapped before it can be queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables, sorted by name.
	ListTables() []string

	// Query returns pointers to structs of the mapped type, along with the
	// number of rows that match the condition regardless of paging.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type sqliteReader struct {
	db      *sql.DB
	typeMap map[string]reflect.Type
}

// NewReader opens a recording. The path may be given with or without the
// .sqlite3 extension.
func NewReader(path string) DataReader {
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		panic(err)
	}

	return NewReaderWithDB(db)
}

// NewReaderWithDB creates a DataReader on an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables() []string {
	tables := make([]string, 0, len(r.typeMap))
	for table := range r.typeMap {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	var total int

	countSQL, countArgs := selectStatement("COUNT(*)", tableName, params, false)

	err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", tableName, err)
	}

	rowsSQL, rowsArgs := selectStatement("*", tableName, params, true)

	rows, err := r.db.QueryContext(ctx, rowsSQL, rowsArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", tableName, err)
	}
	defer rows.Close()

	results, err := scanStructs(rows, structType)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", tableName, err)
	}

	return results, total, nil
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}

// selectStatement builds the query for a table. Paging is only applied when
// paged is set, so that the same condition can be counted.
func selectStatement(
	columns, tableName string,
	params QueryParams,
	paged bool,
) (string, []any) {
	var sb strings.Builder

	args := append([]any(nil), params.Args...)

	fmt.Fprintf(&sb, "SELECT %s FROM %s", columns, tableName)

	if params.Where != "" {
		sb.WriteString(" WHERE " + params.Where)
	}

	if !paged {
		return sb.String(), args
	}

	if params.OrderBy != "" {
		sb.WriteString(" ORDER BY " + params.OrderBy)
	}

	if params.Limit > 0 {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, params.Limit, params.Offset)
	}

	return sb.String(), args
}

// scanStructs reads every row into a new struct of type t. Columns are
// matched to fields by name; columns without a field are skipped.
func scanStructs(rows *sql.Rows, t reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		ptr := reflect.New(t)
		targets := make([]any, len(columns))

		for i, column := range columns {
			field := ptr.Elem().FieldByName(column)
			if field.IsValid() && field.CanSet() {
				targets[i] = field.Addr().Interface()
				continue
			}

			var skipped any
			targets[i] = &skipped
		}

		err = rows.Scan(targets...)
		if err != nil {
			return nil, err
		}

		results = append(results, ptr.Interface())
	}

	return results, rows.Err()
}

// QueryAs runs Query and converts the results to values of T. The table
// must be mapped to T.
func QueryAs[T any](
	ctx context.Context,
	r DataReader,
	tableName string,
	params QueryParams,
) ([]T, int, error) {
	results, total, err := r.Query(ctx, tableName, params)
	if err != nil {
		return nil, 0, err
	}

	out := make([]T, 0, len(results))

	for _, result := range results {
		entry, ok := result.(*T)
		if !ok {
			return nil, 0, fmt.Errorf("table %s is not mapped to %T",
				tableName, *new(T))
		}

		out = append(out, *entry)
	}

	return out, total, nil
}
