package service

import (
	"directory/internal/directory/cache"
	"directory/internal/directory/models"
)

// Locations manages sites. A location cannot be deleted while workers use it.
type Locations struct {
	*Core[models.Location]
}

func NewLocations(repo Repository[models.Location], c *cache.Cache, opts ...Option) *Locations {
	return &Locations{Core: newCore(rules[models.Location]{
		kind:       models.KindLocation,
		schema:     models.LocationSchema,
		keyField:   models.FieldCity,
		id:         func(l models.Location) int64 { return l.ID },
		naturalKey: func(l models.Location) string { return l.City },
		normalize:  (*models.Location).Normalize,
		validate:   models.Location.Validate,
		dependents: "workers",
	}, repo, c, opts)}
}
