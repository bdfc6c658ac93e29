package projection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "directory/pkg/domain-errors"
)

type site struct {
	ID      int64
	City    string
	Country *string
}

func siteSchema() *Schema[site] {
	return MustSchema("site",
		Field[site]{Name: "id", Get: func(s site) any { return s.ID }},
		Field[site]{Name: "city", Get: func(s site) any { return s.City }},
		Field[site]{Name: "country", Get: func(s site) any {
			if s.Country == nil {
				return nil
			}
			return *s.Country
		}},
	)
}

func TestNewSchema(t *testing.T) {
	t.Run("rejects duplicate names case-insensitively", func(t *testing.T) {
		_, err := NewSchema("site",
			Field[site]{Name: "city", Get: func(s site) any { return s.City }},
			Field[site]{Name: "City", Get: func(s site) any { return s.City }},
		)
		assert.ErrorContains(t, err, "duplicate field")
	})

	t.Run("rejects missing accessor", func(t *testing.T) {
		_, err := NewSchema("site", Field[site]{Name: "city"})
		assert.ErrorContains(t, err, "no accessor")
	})

	t.Run("rejects empty registry", func(t *testing.T) {
		_, err := NewSchema[site]("site")
		assert.Error(t, err)
	})

	t.Run("keeps declaration order", func(t *testing.T) {
		assert.Equal(t, []string{"id", "city", "country"}, siteSchema().Names())
	})
}

func TestProject(t *testing.T) {
	schema := siteSchema()
	france := "France"
	items := []site{{ID: 1, City: "Paris", Country: &france}, {ID: 2, City: "Nantes"}}

	t.Run("blank field list returns items unchanged", func(t *testing.T) {
		for _, fields := range []string{"", "   "} {
			res, err := schema.Project(items, fields)
			require.NoError(t, err)
			assert.False(t, res.Projected())
			assert.Equal(t, items, res.Full)
		}
	})

	t.Run("single field exposes only that field", func(t *testing.T) {
		res, err := schema.Project(items, "City")
		require.NoError(t, err)
		require.True(t, res.Projected())
		require.Len(t, res.Partial, 2)
		assert.Equal(t, Record{"city": "Paris"}, res.Partial[0])
		assert.Equal(t, []string{"city"}, res.Partial[1].Keys())
	})

	t.Run("names are trimmed, case-insensitive and deduplicated", func(t *testing.T) {
		res, err := schema.Project(items, " CITY , id,city")
		require.NoError(t, err)
		assert.Equal(t, Record{"city": "Paris", "id": int64(1)}, res.Partial[0])
	})

	t.Run("nil values are omitted", func(t *testing.T) {
		res, err := schema.Project(items, "city,country")
		require.NoError(t, err)
		assert.Equal(t, Record{"city": "Paris", "country": "France"}, res.Partial[0])
		assert.Equal(t, Record{"city": "Nantes"}, res.Partial[1])
	})

	t.Run("unknown field is a validation error naming it", func(t *testing.T) {
		_, err := schema.Project(items, "city,NotAField,zip")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "notafield")
		assert.Contains(t, err.Error(), "zip")
	})

	t.Run("only separators is a validation error", func(t *testing.T) {
		_, err := schema.Project(items, " , ,")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestSelectionKeyIsCanonical(t *testing.T) {
	schema := siteSchema()
	a, err := schema.Select("id,City")
	require.NoError(t, err)
	b, err := schema.Select(" city ,ID")
	require.NoError(t, err)
	all, err := schema.Select("")
	require.NoError(t, err)

	assert.Equal(t, "city,id", a.Key())
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "*", all.Key())
}

func TestMarshalJSON(t *testing.T) {
	schema := siteSchema()
	items := []site{{ID: 3, City: "Lille"}}

	res, err := schema.Project(items, "id,city")
	require.NoError(t, err)
	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"city":"Lille","id":3}]`, string(out))
	assert.Equal(t, `[{"city":"Lille","id":3}]`, string(out))

	empty, err := schema.Project(nil, "city")
	require.NoError(t, err)
	out, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))

	sel, err := schema.Select("")
	require.NoError(t, err)
	out, err = json.Marshal(sel.ApplyOne(items[0]))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ID":3,"City":"Lille","Country":null}`, string(out))

	sel, err = schema.Select("city")
	require.NoError(t, err)
	out, err = json.Marshal(sel.ApplyOne(items[0]))
	require.NoError(t, err)
	assert.Equal(t, `{"city":"Lille"}`, string(out))
}
