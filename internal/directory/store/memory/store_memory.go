// Package memory is the in-process data source for the directory. It backs
// tests and runs without a database; rows vanish with the process.
package memory

import (
	"context"
	"sync"

	"directory/internal/directory/models"
	"directory/internal/directory/query"
	"directory/pkg/platform/sentinel"
)

// DB holds the location, service and worker tables behind one lock.
//
// Writes are serialized by writeMu so RunInTx can snapshot and restore all
// tables. Reads only take mu and may observe writes of a running transaction.
type DB struct {
	writeMu sync.Mutex
	mu      sync.RWMutex

	locations *table[models.Location]
	services  *table[models.Service]
	workers   *table[models.Worker]
}

// New creates an empty database.
func New() *DB {
	return &DB{
		locations: &table[models.Location]{
			rows:   map[int64]models.Location{},
			id:     func(l models.Location) int64 { return l.ID },
			setID:  func(l *models.Location, id int64) { l.ID = id },
			key:    func(l models.Location) string { return models.NormalizeKey(l.City) },
			search: func(l models.Location) []string { return []string{l.City} },
			ints: map[string]func(models.Location) int64{
				models.FieldID: func(l models.Location) int64 { return l.ID },
			},
			texts: map[string]func(models.Location) string{
				models.FieldCity: func(l models.Location) string { return l.City },
			},
		},
		services: &table[models.Service]{
			rows:   map[int64]models.Service{},
			id:     func(s models.Service) int64 { return s.ID },
			setID:  func(s *models.Service, id int64) { s.ID = id },
			key:    func(s models.Service) string { return models.NormalizeKey(s.Name) },
			search: func(s models.Service) []string { return []string{s.Name} },
			ints: map[string]func(models.Service) int64{
				models.FieldID: func(s models.Service) int64 { return s.ID },
			},
			texts: map[string]func(models.Service) string{
				models.FieldName: func(s models.Service) string { return s.Name },
			},
		},
		workers: &table[models.Worker]{
			rows:  map[int64]models.Worker{},
			id:    func(w models.Worker) int64 { return w.ID },
			setID: func(w *models.Worker, id int64) { w.ID = id },
			key:   func(w models.Worker) string { return models.NormalizeKey(w.Email) },
			search: func(w models.Worker) []string {
				return []string{w.FirstName, w.LastName, w.Email, w.PhoneFixed, w.PhoneMobile}
			},
			ints: map[string]func(models.Worker) int64{
				models.FieldID:         func(w models.Worker) int64 { return w.ID },
				models.FieldLocationID: func(w models.Worker) int64 { return w.LocationID },
				models.FieldServiceID:  func(w models.Worker) int64 { return w.ServiceID },
			},
			texts: map[string]func(models.Worker) string{
				models.FieldFirstName:   func(w models.Worker) string { return w.FirstName },
				models.FieldLastName:    func(w models.Worker) string { return w.LastName },
				models.FieldEmail:       func(w models.Worker) string { return w.Email },
				models.FieldPhoneFixed:  func(w models.Worker) string { return w.PhoneFixed },
				models.FieldPhoneMobile: func(w models.Worker) string { return w.PhoneMobile },
			},
		},
	}
}

// Locations returns the location repository.
func (db *DB) Locations() *Repo[models.Location] {
	return &Repo[models.Location]{
		db:    db,
		table: func(db *DB) *table[models.Location] { return db.locations },
		dependents: func(db *DB, id int64) int {
			return db.countWorkers(func(w models.Worker) bool { return w.LocationID == id })
		},
	}
}

// Services returns the service repository.
func (db *DB) Services() *Repo[models.Service] {
	return &Repo[models.Service]{
		db:    db,
		table: func(db *DB) *table[models.Service] { return db.services },
		dependents: func(db *DB, id int64) int {
			return db.countWorkers(func(w models.Worker) bool { return w.ServiceID == id })
		},
	}
}

// Workers returns the worker repository.
func (db *DB) Workers() *Repo[models.Worker] {
	return &Repo[models.Worker]{
		db:         db,
		table:      func(db *DB) *table[models.Worker] { return db.workers },
		references: checkWorkerRefs,
	}
}

func checkWorkerRefs(db *DB, w models.Worker) error {
	if _, ok := db.locations.rows[w.LocationID]; !ok {
		return sentinel.ErrDangling
	}
	if _, ok := db.services.rows[w.ServiceID]; !ok {
		return sentinel.ErrDangling
	}
	return nil
}

func (db *DB) countWorkers(pred func(models.Worker) bool) int {
	n := 0
	for _, w := range db.workers.rows {
		if pred(w) {
			n++
		}
	}
	return n
}

// Repo is a repository over one table of DB.
type Repo[T any] struct {
	db         *DB
	table      func(*DB) *table[T]
	references func(*DB, T) error
	dependents func(*DB, int64) int
}

func (r *Repo[T]) Count(_ context.Context, c query.Criteria) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	rows, err := r.table(r.db).match(c)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *Repo[T]) Find(_ context.Context, c query.Criteria) ([]T, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t := r.table(r.db)
	rows, err := t.match(c)
	if err != nil {
		return nil, err
	}
	if err := t.sort(rows, c.OrderBy); err != nil {
		return nil, err
	}
	return page(rows, c.Offset, c.Limit), nil
}

func (r *Repo[T]) FindByID(_ context.Context, id int64) (T, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	row, ok := r.table(r.db).rows[id]
	if !ok {
		var zero T
		return zero, sentinel.ErrNotFound
	}
	return row, nil
}

func (r *Repo[T]) ExistsByID(_ context.Context, id int64) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	_, ok := r.table(r.db).rows[id]
	return ok, nil
}

// ExistsByNaturalKey compares normalized keys. excludeID skips one row, for
// update checks; pass 0 to consider every row.
func (r *Repo[T]) ExistsByNaturalKey(_ context.Context, key string, excludeID int64) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.table(r.db).keyTaken(models.NormalizeKey(key), excludeID), nil
}

// Insert assigns the next id and stores row.
func (r *Repo[T]) Insert(ctx context.Context, row T) (T, error) {
	unlock := r.db.lockWrite(ctx)
	defer unlock()

	t := r.table(r.db)
	if t.keyTaken(t.key(row), 0) {
		var zero T
		return zero, sentinel.ErrAlreadyUsed
	}
	if r.references != nil {
		if err := r.references(r.db, row); err != nil {
			var zero T
			return zero, err
		}
	}
	t.nextID++
	t.setID(&row, t.nextID)
	t.rows[t.nextID] = row
	return row, nil
}

// Update replaces the row with the same id.
func (r *Repo[T]) Update(ctx context.Context, row T) error {
	unlock := r.db.lockWrite(ctx)
	defer unlock()

	t := r.table(r.db)
	id := t.id(row)
	if _, ok := t.rows[id]; !ok {
		return sentinel.ErrNotFound
	}
	if t.keyTaken(t.key(row), id) {
		return sentinel.ErrAlreadyUsed
	}
	if r.references != nil {
		if err := r.references(r.db, row); err != nil {
			return err
		}
	}
	t.rows[id] = row
	return nil
}

// Delete removes the row. Rows still referenced by workers are kept.
func (r *Repo[T]) Delete(ctx context.Context, id int64) error {
	unlock := r.db.lockWrite(ctx)
	defer unlock()

	t := r.table(r.db)
	if _, ok := t.rows[id]; !ok {
		return sentinel.ErrNotFound
	}
	if r.dependents != nil && r.dependents(r.db, id) > 0 {
		return sentinel.ErrReferenced
	}
	delete(t.rows, id)
	return nil
}

// CountDependents returns how many workers reference id.
func (r *Repo[T]) CountDependents(_ context.Context, id int64) (int, error) {
	if r.dependents == nil {
		return 0, nil
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.dependents(r.db, id), nil
}

// lockWrite takes the data lock, and the write lock unless ctx already runs
// inside a transaction of this DB that holds it.
func (db *DB) lockWrite(ctx context.Context) func() {
	if inTx(ctx, db) {
		db.mu.Lock()
		return db.mu.Unlock
	}
	db.writeMu.Lock()
	db.mu.Lock()
	return func() {
		db.mu.Unlock()
		db.writeMu.Unlock()
	}
}
