package store

import (
	"fmt"
	"reflect"
	"sort"

	"gorm.io/gorm"
)

// Filter selects rows by column equality. A slice value matches any of its
// elements; an empty slice matches nothing. A nil value matches NULL.
type Filter map[string]any

// QueryOption adjusts a read.
type QueryOption func(*queryOptions)

type queryOptions struct {
	orderBy []string
	limit   int
	columns []string
}

// OrderBy appends an ORDER BY term such as "created_at DESC".
func OrderBy(term string) QueryOption {
	return func(o *queryOptions) { o.orderBy = append(o.orderBy, term) }
}

func Limit(n int) QueryOption {
	return func(o *queryOptions) { o.limit = n }
}

// Select restricts the columns read.
func Select(columns ...string) QueryOption {
	return func(o *queryOptions) { o.columns = append(o.columns, columns...) }
}

// apply adds the filter's conditions to q. The second result is true when the
// filter can never match, in which case the caller skips the round trip.
func (f Filter) apply(q *gorm.DB) (*gorm.DB, bool) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, column := range keys {
		value := f[column]
		if value == nil {
			q = q.Where(fmt.Sprintf("%s IS NULL", column))
			continue
		}
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice {
			if rv.Len() == 0 {
				return q, true
			}
			q = q.Where(fmt.Sprintf("%s IN ?", column), value)
			continue
		}
		q = q.Where(fmt.Sprintf("%s = ?", column), value)
	}
	return q, false
}

func (o queryOptions) apply(q *gorm.DB) *gorm.DB {
	if len(o.columns) > 0 {
		q = q.Select(o.columns)
	}
	for _, term := range o.orderBy {
		q = q.Order(term)
	}
	if o.limit > 0 {
		q = q.Limit(o.limit)
	}
	return q
}
