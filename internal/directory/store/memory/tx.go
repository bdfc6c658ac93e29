package memory

import "context"

type txKey struct{}

func inTx(ctx context.Context, db *DB) bool {
	owner, _ := ctx.Value(txKey{}).(*DB)
	return owner == db
}

// RunInTx runs fn with exclusive write access and restores every table if fn
// fails. Nested calls join the outer transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx, db) {
		return fn(ctx)
	}
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	db.mu.RLock()
	locations, services, workers := db.locations.clone(), db.services.clone(), db.workers.clone()
	db.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.mu.Lock()
		db.locations, db.services, db.workers = locations, services, workers
		db.mu.Unlock()
		return err
	}
	return nil
}
