package postgres

import "directory/internal/directory/models"

type scanner interface {
	Scan(dest ...any) error
}

// tableSpec describes how one entity kind maps onto its table. Only column
// names listed here ever reach generated SQL.
type tableSpec[T any] struct {
	name string
	// columns in SELECT order; the first is always id.
	columns []string
	// fields maps query field names to columns for filters and ordering.
	fields    map[string]string
	search    []string
	keyColumn string

	id     func(T) int64
	values func(T) []any // values for columns[1:]
	scan   func(scanner) (T, error)

	// dependents counts rows referencing an id, for kinds that can be referenced.
	dependents string
}

var locationTable = tableSpec[models.Location]{
	name:    "locations",
	columns: []string{"id", "city"},
	fields: map[string]string{
		models.FieldID:   "id",
		models.FieldCity: "city",
	},
	search:     []string{"city"},
	keyColumn:  "city",
	id:         func(l models.Location) int64 { return l.ID },
	values:     func(l models.Location) []any { return []any{l.City} },
	dependents: "SELECT count(*) FROM workers WHERE location_id = $1",
	scan: func(row scanner) (models.Location, error) {
		var l models.Location
		err := row.Scan(&l.ID, &l.City)
		return l, err
	},
}

var serviceTable = tableSpec[models.Service]{
	name:    "services",
	columns: []string{"id", "name"},
	fields: map[string]string{
		models.FieldID:   "id",
		models.FieldName: "name",
	},
	search:     []string{"name"},
	keyColumn:  "name",
	id:         func(s models.Service) int64 { return s.ID },
	values:     func(s models.Service) []any { return []any{s.Name} },
	dependents: "SELECT count(*) FROM workers WHERE service_id = $1",
	scan: func(row scanner) (models.Service, error) {
		var s models.Service
		err := row.Scan(&s.ID, &s.Name)
		return s, err
	},
}

var workerTable = tableSpec[models.Worker]{
	name: "workers",
	columns: []string{
		"id", "first_name", "last_name", "email",
		"phone_fixed", "phone_mobile", "location_id", "service_id",
	},
	fields: map[string]string{
		models.FieldID:          "id",
		models.FieldFirstName:   "first_name",
		models.FieldLastName:    "last_name",
		models.FieldEmail:       "email",
		models.FieldPhoneFixed:  "phone_fixed",
		models.FieldPhoneMobile: "phone_mobile",
		models.FieldLocationID:  "location_id",
		models.FieldServiceID:   "service_id",
	},
	search:    []string{"first_name", "last_name", "email", "phone_fixed", "phone_mobile"},
	keyColumn: "email",
	id:        func(w models.Worker) int64 { return w.ID },
	values: func(w models.Worker) []any {
		return []any{w.FirstName, w.LastName, w.Email, w.PhoneFixed, w.PhoneMobile, w.LocationID, w.ServiceID}
	},
	scan: func(row scanner) (models.Worker, error) {
		var w models.Worker
		err := row.Scan(&w.ID, &w.FirstName, &w.LastName, &w.Email,
			&w.PhoneFixed, &w.PhoneMobile, &w.LocationID, &w.ServiceID)
		return w, err
	},
}
