// Package v1 provides the repository handlers of the admin API.
package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/toolhive-skill-sync/internal/api/common"
	"github.com/stacklok/toolhive-skill-sync/internal/service"
)

const (
	defaultPendingLimit = 100
	maxPendingLimit     = 10000
)

// Router returns the repository routes.
func Router(svc service.SyncService) http.Handler {
	r := chi.NewRouter()
	routes := &Routes{service: svc}

	r.Get("/repositories/pending", routes.listPending)
	r.Get("/repositories/{id}", routes.getRepository)
	r.Post("/repositories/{id}/sync", routes.triggerSync)

	return r
}

// Routes holds dependencies for repository handlers.
type Routes struct {
	service service.SyncService
}

// listPending handles GET /v1/repositories/pending?limit=N
func (routes *Routes) listPending(w http.ResponseWriter, r *http.Request) {
	limit, err := common.GetIntQuery(r, "limit", defaultPendingLimit)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if limit <= 0 {
		common.WriteErrorResponse(w, "limit must be positive", http.StatusBadRequest)
		return
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}

	ids, err := routes.service.ListPendingRepositoryIDs(r.Context(), service.WithLimit(limit))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, PendingResponse{RepositoryIDs: ids, Count: len(ids)}, http.StatusOK)
}

// getRepository handles GET /v1/repositories/{id}
func (routes *Routes) getRepository(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetUUIDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	detail, err := routes.service.GetRepository(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, repositoryToResponse(detail), http.StatusOK)
}

// triggerSync handles POST /v1/repositories/{id}/sync. A sync already
// running for the repository is joined rather than duplicated.
func (routes *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetUUIDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID, err := routes.service.TriggerSync(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, TriggerResponse{RepositoryID: id, RunID: runID}, http.StatusAccepted)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrRepositoryNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidLimit):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNoTrigger):
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.ErrorContext(r.Context(), "Admin API request failed", "path", r.URL.Path, "error", err)
		common.WriteErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}
