package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"directory/internal/directory/models"
	"directory/internal/directory/service"
	dErrors "directory/pkg/domain-errors"
	"directory/pkg/platform/httputil"
)

// entity is a request body type that validates itself.
type entity[T any] interface {
	*T
	httputil.Validatable
}

// idField reads and writes the id of a T.
type idField[T any] struct {
	get func(T) int64
	set func(*T, int64)
}

var (
	locationID = idField[models.Location]{
		get: func(l models.Location) int64 { return l.ID },
		set: func(l *models.Location, id int64) { l.ID = id },
	}
	serviceID = idField[models.Service]{
		get: func(s models.Service) int64 { return s.ID },
		set: func(s *models.Service, id int64) { s.ID = id },
	}
	workerID = idField[models.Worker]{
		get: func(w models.Worker) int64 { return w.ID },
		set: func(w *models.Worker, id int64) { w.ID = id },
	}
)

// ExistsResponse answers the existence endpoints.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// TransferResponse is the transfer summary with its derived counters.
type TransferResponse struct {
	service.TransferResult
	FailedCount       int  `json:"failedCount"`
	IsCompleteSuccess bool `json:"isCompleteSuccess"`
}

func newTransferResponse(res service.TransferResult) TransferResponse {
	failed := res.Total - res.SuccessCount
	return TransferResponse{
		TransferResult:    res,
		FailedCount:       failed,
		IsCompleteSuccess: failed == 0,
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeValidation, "invalid ID provided: '%s' is not an integer", raw)
	}
	return id, nil
}

// listParams reads searchTerm, fields, pageNumber and pageSize. Missing page
// parameters default to the first page of defaultPageSize items; an empty
// searchTerm means no search.
func listParams(q url.Values, defaultPageSize int) (service.ListParams, error) {
	p := service.ListParams{
		Fields:     q.Get("fields"),
		PageNumber: 1,
		PageSize:   defaultPageSize,
	}
	if term := q.Get("searchTerm"); term != "" {
		p.SearchTerm = &term
	}
	var err error
	if p.PageNumber, err = intParam(q, "pageNumber", p.PageNumber); err != nil {
		return p, err
	}
	if p.PageSize, err = intParam(q, "pageSize", p.PageSize); err != nil {
		return p, err
	}
	return p, nil
}

func workerFilter(q url.Values) (service.WorkerFilter, error) {
	var f service.WorkerFilter
	var err error
	if f.LocationID, err = optionalID(q, "locationId"); err != nil {
		return f, err
	}
	if f.ServiceID, err = optionalID(q, "serviceId"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s: '%s' is not an integer", name, raw)
	}
	return n, nil
}

func optionalID(q url.Values, name string) (*int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s: '%s' is not an integer", name, raw)
	}
	return &id, nil
}
