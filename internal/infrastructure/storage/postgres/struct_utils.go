package postgres

import (
	"reflect"
	"sync"
)

// column maps a "db" tag to the field path that holds it. Paths reach
// through embedded structs such as entity.Record.
type column struct {
	name  string
	index []int
}

var columnCache sync.Map // reflect.Type -> []column

// columnsOf returns the flattened, cached column layout of t.
func columnsOf(t reflect.Type) []column {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}
	var cols []column
	if t.Kind() == reflect.Struct {
		cols = collectColumns(t, nil)
	}
	columnCache.Store(t, cols)
	return cols
}

func collectColumns(t reflect.Type, prefix []int) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			cols = append(cols, collectColumns(f.Type, path)...)
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, column{name: tag, index: path})
	}
	return cols
}

// ExtractDBColumns lists the "db" columns of T in field order, embedded
// structs first where they are declared first.
//
//	columns := ExtractDBColumns[occupancy.Residence]()
//	// ["id", "created_at", "unit_id", "account_id", ...]
func ExtractDBColumns[T any]() []string {
	cols := columnsOf(reflect.TypeOf((*T)(nil)).Elem())
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// StructToMap converts a struct to a column -> value map. Returns nil for
// non-struct input.
func StructToMap(v any) map[string]any {
	rv, ok := structValue(v)
	if !ok {
		return nil
	}
	cols := columnsOf(rv.Type())
	res := make(map[string]any, len(cols))
	for _, c := range cols {
		res[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return res
}

// StructValues returns the values of v in the order of columns, for COPY rows
// and positional inserts. Unknown columns yield nil.
func StructValues(v any, columns []string) []any {
	m := StructToMap(v)
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = m[c]
	}
	return out
}

func structValue(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.Kind() == reflect.Struct
}
