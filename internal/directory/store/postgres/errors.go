package postgres

import (
	"errors"

	"github.com/lib/pq"

	"directory/pkg/platform/sentinel"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// translateWrite maps constraint violations of inserts and updates onto sentinels.
func translateWrite(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case uniqueViolation:
		return sentinel.ErrAlreadyUsed
	case foreignKeyViolation:
		return sentinel.ErrDangling
	}
	return err
}

// translateDelete maps a foreign-key violation on delete to ErrReferenced.
func translateDelete(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return sentinel.ErrReferenced
	}
	return err
}
