package cache

import (
	"net/url"
	"strconv"
	"strings"

	"directory/internal/directory/query"
)

const namespace = "directory"

// ListKeyParams identifies one list page. SelectionKey is the canonical
// field selection (see projection.Selection.Key).
type ListKeyParams struct {
	SearchTerm   *string
	SelectionKey string
	PageNumber   int
	PageSize     int
	Equals       []query.Equal
}

// KindPrefix covers every entry of kind.
func KindPrefix(kind string) string {
	return namespace + ":" + kind + ":"
}

// ListPrefix covers every list page of kind.
func ListPrefix(kind string) string {
	return KindPrefix(kind) + "list:"
}

// EntityKey addresses the single-entity entry for id.
func EntityKey(kind string, id int64) string {
	return KindPrefix(kind) + "id:" + strconv.FormatInt(id, 10)
}

// ListKey builds a deterministic key for a list page. A nil search term and
// an empty one produce different keys.
func ListKey(kind string, p ListKeyParams) string {
	v := url.Values{}
	if p.SearchTerm != nil {
		v.Set("q", *p.SearchTerm)
	}
	v.Set("f", p.SelectionKey)
	v.Set("p", strconv.Itoa(p.PageNumber))
	v.Set("n", strconv.Itoa(p.PageSize))
	addEquals(v, p.Equals)
	// Encode sorts by parameter name.
	return ListPrefix(kind) + v.Encode()
}

func addEquals(v url.Values, equals []query.Equal) {
	for _, eq := range equals {
		v.Add("eq."+eq.Field, strconv.FormatInt(eq.Value, 10))
	}
}

// kindOf extracts the entity kind from a key built by this package.
func kindOf(key string) string {
	rest, ok := strings.CutPrefix(key, namespace+":")
	if !ok {
		return "unknown"
	}
	kind, _, _ := strings.Cut(rest, ":")
	return kind
}
