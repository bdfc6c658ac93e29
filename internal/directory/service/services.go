package service

import (
	"directory/internal/directory/cache"
	"directory/internal/directory/models"
)

// Services manages departments. A service cannot be deleted while workers belong to it.
type Services struct {
	*Core[models.Service]
}

func NewServices(repo Repository[models.Service], c *cache.Cache, opts ...Option) *Services {
	return &Services{Core: newCore(rules[models.Service]{
		kind:       models.KindService,
		schema:     models.ServiceSchema,
		keyField:   models.FieldName,
		id:         func(s models.Service) int64 { return s.ID },
		naturalKey: func(s models.Service) string { return s.Name },
		normalize:  (*models.Service).Normalize,
		validate:   models.Service.Validate,
		dependents: "workers",
	}, repo, c, opts)}
}
