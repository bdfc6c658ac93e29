package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"directory/internal/directory/service"
	"directory/pkg/platform/httputil"
	"directory/pkg/requestcontext"
)

func handleList[T any](h *Handler, svc CatalogService[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := listParams(r.URL.Query(), h.maxPageSize)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		res, err := svc.GetFiltered(r.Context(), p)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func handleGet[T any](h *Handler, svc CatalogService[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		view, err := svc.GetByID(r.Context(), id, r.URL.Query().Get("fields"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := listParams(q, h.maxPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := workerFilter(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.workers.GetFiltered(r.Context(), p, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	f, err := workerFilter(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.workers.GetByID(r.Context(), id, q.Get("fields"), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func handleCreate[T any, PT entity[T]](h *Handler, svc writer[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, ok := httputil.DecodeAndPrepare[T, PT](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		created, err := svc.Create(ctx, *body)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, created)
	}
}

// handleUpdate replaces the entity named by the path. A body without an id
// takes the path id; a different one is rejected by the service.
func handleUpdate[T any, PT entity[T]](h *Handler, svc writer[T], idf idField[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathID(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		body, ok := httputil.DecodeAndPrepare[T, PT](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		if idf.get(*body) == 0 {
			idf.set(body, id)
		}
		if err := svc.Update(ctx, id, *body); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDelete[T any](h *Handler, svc writer[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleExistsByID[T any](h *Handler, svc writer[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ok, err := svc.ExistsByID(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ExistsResponse{Exists: ok})
	}
}

func handleExistsByKey[T any](h *Handler, svc writer[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := svc.ExistsByNaturalKey(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ExistsResponse{Exists: ok})
	}
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[service.TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.transfers.Transfer(ctx, *req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "workers transferred",
		"request_id", requestcontext.RequestID(ctx),
		"total", res.Total,
		"succeeded", res.SuccessCount,
	)
	httputil.WriteJSON(w, http.StatusOK, newTransferResponse(res))
}

