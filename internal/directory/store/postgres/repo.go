package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"directory/internal/directory/models"
	"directory/internal/directory/query"
	"directory/pkg/platform/sentinel"
	txcontext "directory/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo is a repository over one table.
type Repo[T any] struct {
	db   *sql.DB
	spec *tableSpec[T]
}

func (r *Repo[T]) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return r.db
}

func (r *Repo[T]) Count(ctx context.Context, c query.Criteria) (int, error) {
	where, args, err := r.where(c)
	if err != nil {
		return 0, err
	}
	var n int
	q := "SELECT count(*) FROM " + r.spec.name + where
	if err := r.execer(ctx).QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.spec.name, err)
	}
	return n, nil
}

func (r *Repo[T]) Find(ctx context.Context, c query.Criteria) ([]T, error) {
	where, args, err := r.where(c)
	if err != nil {
		return nil, err
	}
	orderBy, err := r.orderBy(c.OrderBy)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(r.spec.columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(r.spec.name)
	b.WriteString(where)
	b.WriteString(orderBy)
	if c.Limit > 0 {
		args = append(args, c.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if c.Offset > 0 {
		args = append(args, c.Offset)
		b.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	rows, err := r.execer(ctx).QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", r.spec.name, err)
	}
	defer rows.Close()

	out := make([]T, 0, c.Limit)
	for rows.Next() {
		row, err := r.spec.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.spec.name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", r.spec.name, err)
	}
	return out, nil
}

func (r *Repo[T]) FindByID(ctx context.Context, id int64) (T, error) {
	q := "SELECT " + strings.Join(r.spec.columns, ", ") + " FROM " + r.spec.name + " WHERE id = $1"
	row, err := r.spec.scan(r.execer(ctx).QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, sentinel.ErrNotFound
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("find %s by id: %w", r.spec.name, err)
	}
	return row, nil
}

func (r *Repo[T]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM " + r.spec.name + " WHERE id = $1)"
	if err := r.execer(ctx).QueryRowContext(ctx, q, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists %s: %w", r.spec.name, err)
	}
	return exists, nil
}

// ExistsByNaturalKey compares against the lower-cased key column. excludeID
// skips one row; 0 considers every row.
func (r *Repo[T]) ExistsByNaturalKey(ctx context.Context, key string, excludeID int64) (bool, error) {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM " + r.spec.name +
		" WHERE lower(" + r.spec.keyColumn + ") = $1 AND id <> $2)"
	if err := r.execer(ctx).QueryRowContext(ctx, q, models.NormalizeKey(key), excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists %s by key: %w", r.spec.name, err)
	}
	return exists, nil
}

func (r *Repo[T]) Insert(ctx context.Context, row T) (T, error) {
	cols := r.spec.columns[1:]
	q := "INSERT INTO " + r.spec.name + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		placeholders(1, len(cols)) + ") RETURNING " + strings.Join(r.spec.columns, ", ")
	created, err := r.spec.scan(r.execer(ctx).QueryRowContext(ctx, q, r.spec.values(row)...))
	if err != nil {
		var zero T
		return zero, translateWrite(err)
	}
	return created, nil
}

func (r *Repo[T]) Update(ctx context.Context, row T) error {
	cols := r.spec.columns[1:]
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = $" + strconv.Itoa(i+1)
	}
	args := append(r.spec.values(row), r.spec.id(row))
	q := "UPDATE " + r.spec.name + " SET " + strings.Join(sets, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args))

	res, err := r.execer(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return translateWrite(err)
	}
	return expectOneRow(res)
}

func (r *Repo[T]) Delete(ctx context.Context, id int64) error {
	res, err := r.execer(ctx).ExecContext(ctx, "DELETE FROM "+r.spec.name+" WHERE id = $1", id)
	if err != nil {
		return translateDelete(err)
	}
	return expectOneRow(res)
}

// CountDependents returns how many workers reference id. Workers have no dependents.
func (r *Repo[T]) CountDependents(ctx context.Context, id int64) (int, error) {
	if r.spec.dependents == "" {
		return 0, nil
	}
	var n int
	if err := r.execer(ctx).QueryRowContext(ctx, r.spec.dependents, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s dependents: %w", r.spec.name, err)
	}
	return n, nil
}

func (r *Repo[T]) where(c query.Criteria) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	for _, eq := range c.Equals {
		col, ok := r.spec.fields[eq.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown filter field %q", eq.Field)
		}
		args = append(args, eq.Value)
		conds = append(conds, col+" = $"+strconv.Itoa(len(args)))
	}
	if c.HasSearch() && len(r.spec.search) > 0 {
		args = append(args, "%"+escapeLike(c.Search)+"%")
		n := "$" + strconv.Itoa(len(args))
		ors := make([]string, len(r.spec.search))
		for i, col := range r.spec.search {
			ors[i] = col + " ILIKE " + n + ` ESCAPE '\'`
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (r *Repo[T]) orderBy(orders []query.Order) (string, error) {
	if len(orders) == 0 {
		return " ORDER BY id", nil
	}
	parts := make([]string, 0, len(orders)+1)
	hasID := false
	for _, o := range orders {
		col, ok := r.spec.fields[o.Field]
		if !ok {
			return "", fmt.Errorf("unknown order field %q", o.Field)
		}
		if col == "id" {
			hasID = true
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		parts = append(parts, col+dir)
	}
	if !hasID {
		parts = append(parts, "id ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(ps, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
