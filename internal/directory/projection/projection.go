// Package projection reduces records to a caller-selected set of fields.
//
// Each entity kind declares a Schema: an ordered registry of field names mapped
// to typed accessors. Field lists arrive as comma-separated strings, are matched
// case-insensitively against the schema, and either select the full record or
// a Record holding only the requested fields.
package projection

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	dErrors "directory/pkg/domain-errors"
	pstrings "directory/pkg/platform/strings"
)

// Field maps a public field name to its accessor. A nil value returned by Get
// is treated as absent and omitted from projections.
type Field[T any] struct {
	Name string
	Get  func(T) any
}

// Schema is the set of projectable fields for one entity kind.
type Schema[T any] struct {
	kind   string
	fields []Field[T]
	byName map[string]Field[T]
}

// NewSchema validates the field registry: names must be non-empty, unique
// (case-insensitively) and carry an accessor.
func NewSchema[T any](kind string, fields ...Field[T]) (*Schema[T], error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("projection schema %q: no fields declared", kind)
	}
	s := &Schema[T]{kind: kind, byName: make(map[string]Field[T], len(fields))}
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("projection schema %q: empty field name", kind)
		}
		if f.Get == nil {
			return nil, fmt.Errorf("projection schema %q: field %q has no accessor", kind, f.Name)
		}
		key := strings.ToLower(f.Name)
		if _, dup := s.byName[key]; dup {
			return nil, fmt.Errorf("projection schema %q: duplicate field %q", kind, f.Name)
		}
		s.byName[key] = f
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is NewSchema for package-level registries.
func MustSchema[T any](kind string, fields ...Field[T]) *Schema[T] {
	s, err := NewSchema(kind, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Kind returns the entity kind the schema describes.
func (s *Schema[T]) Kind() string {
	return s.kind
}

// Names returns the declared field names in declaration order.
func (s *Schema[T]) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Select parses a comma-separated field list. A blank list selects the full
// record. Unknown names fail with a validation error listing all of them.
func (s *Schema[T]) Select(fields string) (Selection[T], error) {
	if strings.TrimSpace(fields) == "" {
		return Selection[T]{}, nil
	}
	requested := pstrings.DedupeAndTrimLower(strings.Split(fields, ","))
	if len(requested) == 0 {
		return Selection[T]{}, dErrors.New(dErrors.CodeValidation, "no field specified in field list")
	}

	var invalid []string
	selected := make([]Field[T], 0, len(requested))
	for _, name := range requested {
		f, ok := s.byName[name]
		if !ok {
			invalid = append(invalid, name)
			continue
		}
		selected = append(selected, f)
	}
	if len(invalid) > 0 {
		return Selection[T]{}, dErrors.Newf(dErrors.CodeValidation,
			"the following field(s) are invalid for %s: %s", s.kind, strings.Join(invalid, ", "))
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Name < selected[j].Name
	})
	return Selection[T]{fields: selected}, nil
}

// Project selects fields and applies them to items in one step.
func (s *Schema[T]) Project(items []T, fields string) (Result[T], error) {
	sel, err := s.Select(fields)
	if err != nil {
		return Result[T]{}, err
	}
	return sel.Apply(items), nil
}

// Selection is a validated, alphabetically ordered field list.
// The zero value selects the full record.
type Selection[T any] struct {
	fields []Field[T]
}

// All reports whether the selection keeps the full record.
func (sel Selection[T]) All() bool {
	return len(sel.fields) == 0
}

// Names returns the selected field names in output order.
func (sel Selection[T]) Names() []string {
	names := make([]string, len(sel.fields))
	for i, f := range sel.fields {
		names[i] = f.Name
	}
	return names
}

// Key is a canonical form of the selection for use in cache keys.
func (sel Selection[T]) Key() string {
	if sel.All() {
		return "*"
	}
	return strings.Join(sel.Names(), ",")
}

// Apply projects every item.
func (sel Selection[T]) Apply(items []T) Result[T] {
	if sel.All() {
		return Result[T]{Full: items}
	}
	records := make([]Record, len(items))
	for i, item := range items {
		records[i] = sel.record(item)
	}
	return Result[T]{Partial: records, projected: true}
}

// ApplyOne projects a single item.
func (sel Selection[T]) ApplyOne(item T) View[T] {
	if sel.All() {
		return View[T]{Entity: &item}
	}
	return View[T]{Record: sel.record(item)}
}

func (sel Selection[T]) record(item T) Record {
	rec := make(Record, len(sel.fields))
	for _, f := range sel.fields {
		if v := f.Get(item); v != nil {
			rec[f.Name] = v
		}
	}
	return rec
}

// Record is a reduced representation of one entity. encoding/json emits map
// keys in sorted order, which keeps the output alphabetical.
type Record map[string]any

// Keys returns the record's field names, sorted.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Result holds either the full records or their projections.
type Result[T any] struct {
	Full      []T
	Partial   []Record
	projected bool
}

// Projected reports whether the result holds reduced records.
func (r Result[T]) Projected() bool {
	return r.projected
}

// Len returns the number of items regardless of shape.
func (r Result[T]) Len() int {
	if r.projected {
		return len(r.Partial)
	}
	return len(r.Full)
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.projected {
		if r.Partial == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Partial)
	}
	if r.Full == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Full)
}

// View is a single entity, full or projected.
type View[T any] struct {
	Entity *T
	Record Record
}

func (v View[T]) MarshalJSON() ([]byte, error) {
	if v.Entity != nil {
		return json.Marshal(v.Entity)
	}
	if v.Record == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v.Record)
}
