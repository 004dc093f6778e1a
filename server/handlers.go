package server

import (
	"encoding/json"
	"net/http"

	"github.com/teranos/punchclock/auth"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/remote"
	psync "github.com/teranos/punchclock/sync"
)

func (s *Server) setupRoutes() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+remote.PathHealth, s.handleHealth)
	mux.HandleFunc("POST "+remote.PathSyncPrefix+"{resource}", s.middleware.RequireAuth(s.handleSync))
	mux.HandleFunc("GET "+remote.PathListPrefix+"{resource}", s.middleware.RequireAuth(s.handleList))
	mux.HandleFunc("GET "+remote.PathChanges, s.middleware.RequireAuth(s.handleChanges))
	s.mux = mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.State() != StateRunning {
		status, code = s.State().String(), http.StatusServiceUnavailable
	}
	_ = writeJSON(w, code, remote.HealthResponse{Status: status, APIVersion: remote.APIVersion})
}

// entityFromPath resolves {resource}, answering 404 for unknown resources
func entityFromPath(w http.ResponseWriter, r *http.Request) (mutation.EntityType, bool) {
	resource := r.PathValue("resource")
	et, ok := remote.EntityForResource(resource)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource "+resource)
	}
	return et, ok
}

// handleSync applies one push batch and tells the user's other devices
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	et, ok := entityFromPath(w, r)
	if !ok {
		return
	}
	var req remote.SyncRequest
	if !readJSON(w, r, &req) {
		return
	}
	claims := auth.UserFromContext(r.Context())

	n, err := s.store.Apply(r.Context(), claims.UserID, et, req.Operation, req.Items)
	if err != nil {
		writeFailure(w, r, s.logger, err)
		return
	}

	log := s.logger.With(logger.FieldsFromContext(r.Context())...)
	log.Debugw("Batch applied",
		logger.FieldEntityType, et,
		logger.FieldOperation, req.Operation,
		logger.FieldCount, n,
		"items", len(req.Items))
	if req.Operation == mutation.OpUpsert && n < len(req.Items) {
		// Rows that already belong to another user are left untouched
		log.Warnw("Upsert skipped foreign-owned rows",
			logger.FieldEntityType, et,
			"skipped", len(req.Items)-n)
	}

	if n > 0 {
		s.hub.Notify(claims.UserID, claims.SessionID, psync.Change{
			Type:       psync.ChangeTypeChanged,
			EntityType: et,
		})
	}
	_ = writeJSON(w, http.StatusOK, psync.Result{Success: true, Count: n})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	et, ok := entityFromPath(w, r)
	if !ok {
		return
	}
	claims := auth.UserFromContext(r.Context())

	items, err := s.store.List(r.Context(), claims.UserID, et)
	if err != nil {
		writeFailure(w, r, s.logger, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, remote.ListResponse[json.RawMessage]{Items: items})
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	claims := auth.UserFromContext(r.Context())
	s.hub.ServeWS(w, r, claims.UserID, claims.SessionID)
}
