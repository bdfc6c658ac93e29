package memory

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"directory/internal/directory/query"
)

// table holds the rows of one entity kind plus the accessors the generic
// query path needs. All methods expect the owning DB's lock to be held.
type table[T any] struct {
	rows   map[int64]T
	nextID int64

	id      func(T) int64
	setID   func(*T, int64)
	key     func(T) string
	search  func(T) []string
	ints    map[string]func(T) int64
	texts   map[string]func(T) string
}

func (t *table[T]) clone() *table[T] {
	cp := *t
	cp.rows = make(map[int64]T, len(t.rows))
	for k, v := range t.rows {
		cp.rows[k] = v
	}
	return &cp
}

func (t *table[T]) match(c query.Criteria) ([]T, error) {
	var needle string
	if c.HasSearch() {
		needle = strings.ToLower(c.Search)
	}
	out := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		ok, err := t.matches(row, needle, c.Equals)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (t *table[T]) matches(row T, needle string, equals []query.Equal) (bool, error) {
	for _, eq := range equals {
		get, ok := t.ints[eq.Field]
		if !ok {
			return false, fmt.Errorf("unknown filter field %q", eq.Field)
		}
		if get(row) != eq.Value {
			return false, nil
		}
	}
	if needle == "" {
		return true, nil
	}
	for _, v := range t.search(row) {
		if strings.Contains(strings.ToLower(v), needle) {
			return true, nil
		}
	}
	return false, nil
}

func (t *table[T]) sort(rows []T, orders []query.Order) error {
	cmps := make([]func(a, b T) int, 0, len(orders)+1)
	for _, o := range orders {
		c, err := t.comparator(o.Field)
		if err != nil {
			return err
		}
		if o.Desc {
			asc := c
			c = func(a, b T) int { return asc(b, a) }
		}
		cmps = append(cmps, c)
	}
	// Rows come from a map; a final id comparison keeps ties deterministic.
	cmps = append(cmps, func(a, b T) int { return cmp.Compare(t.id(a), t.id(b)) })

	slices.SortFunc(rows, func(a, b T) int {
		for _, c := range cmps {
			if r := c(a, b); r != 0 {
				return r
			}
		}
		return 0
	})
	return nil
}

func (t *table[T]) comparator(field string) (func(a, b T) int, error) {
	if get, ok := t.ints[field]; ok {
		return func(a, b T) int { return cmp.Compare(get(a), get(b)) }, nil
	}
	if get, ok := t.texts[field]; ok {
		return func(a, b T) int {
			return cmp.Compare(strings.ToLower(get(a)), strings.ToLower(get(b)))
		}, nil
	}
	return nil, fmt.Errorf("unknown order field %q", field)
}

// page applies offset and limit to sorted rows.
func page[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return slices.Clone(rows[offset:end])
}

func (t *table[T]) keyTaken(key string, excludeID int64) bool {
	for id, row := range t.rows {
		if id != excludeID && t.key(row) == key {
			return true
		}
	}
	return false
}
