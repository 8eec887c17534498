package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/store"
)

// Session headers sent by the clients.
const (
	headerUser = "X-Portal-User"
	headerRole = "X-Portal-Role"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *PortalServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	for _, res := range s.order {
		mux.HandleFunc("GET "+res.Path, s.handleList(res))
		mux.HandleFunc("POST "+res.Path, s.handleCreate(res))
		mux.HandleFunc("GET "+res.Path+"/stats", s.handleStats(res))
		mux.HandleFunc("GET "+res.Path+"/{id}", s.handleGet(res))
		mux.HandleFunc("PATCH "+res.Path+"/{id}", s.handleUpdate(res))
		mux.HandleFunc("DELETE "+res.Path+"/{id}", s.handleDelete(res))
	}
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/presence", s.handlePresence)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RequestLogger(SessionMiddleware(authToken, mux))
}

// handleHealth handles GET /v1/health.
func (s *PortalServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePresence handles GET /v1/presence. Optional parameters: resource
// limits the roster to one collection, stale (a duration) drops idle users.
func (s *PortalServer) handlePresence(w http.ResponseWriter, r *http.Request) {
	var resource string
	if name := r.URL.Query().Get("resource"); name != "" {
		res, err := s.resource(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := authorize(res, callerFrom(r)); err != nil {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		resource = res.Name
	}
	var stale time.Duration
	if v := r.URL.Query().Get("stale"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "stale must be a non-negative duration")
			return
		}
		stale = d
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"users": s.presence.Roster(resource, stale)},
	})
}

// handleList handles GET <path>.
func (s *PortalServer) handleList(res *model.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allowed(w, r, res, "list") {
			return
		}
		q, err := parseListQuery(r, res)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		items, total, err := s.listRecords(r.Context(), res, q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list "+res.Name)
			return
		}
		writeJSON(w, http.StatusOK, listEnvelope(res, items, q.Criteria, total))
	}
}

// handleCreate handles POST <path>.
func (s *PortalServer) handleCreate(res *model.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allowed(w, r, res, "create") {
			return
		}
		var fields map[string]any
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rec, err := s.createRecord(r.Context(), res, fields, callerFrom(r))
		if err != nil {
			writeFailure(w, res, err)
			return
		}
		writeJSON(w, http.StatusCreated, recordEnvelope(res, rec))
	}
}

// handleGet handles GET <path>/{id}.
func (s *PortalServer) handleGet(res *model.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allowed(w, r, res, "get") {
			return
		}
		rec, err := s.store.GetRecord(r.Context(), res, r.PathValue("id"))
		if err != nil {
			writeFailure(w, res, err)
			return
		}
		writeJSON(w, http.StatusOK, recordEnvelope(res, rec))
	}
}

// handleUpdate handles PATCH <path>/{id}.
func (s *PortalServer) handleUpdate(res *model.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allowed(w, r, res, "update") {
			return
		}
		var fields map[string]any
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rec, err := s.updateRecord(r.Context(), res, r.PathValue("id"), fields, callerFrom(r))
		if err != nil {
			writeFailure(w, res, err)
			return
		}
		writeJSON(w, http.StatusOK, recordEnvelope(res, rec))
	}
}

// handleDelete handles DELETE <path>/{id}. The array-envelope collections
// answer 204; the others confirm with {success, message}.
func (s *PortalServer) handleDelete(res *model.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allowed(w, r, res, "delete") {
			return
		}
		if err := s.deleteRecord(r.Context(), res, r.PathValue("id"), callerFrom(r)); err != nil {
			writeFailure(w, res, err)
			return
		}
		if res.Envelope == model.EnvelopeArray {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "deleted"})
	}
}

// handleStats handles GET <path>/stats.
func (s *PortalServer) handleStats(res *model.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allowed(w, r, res, "stats") {
			return
		}
		st, err := s.store.RecordStats(r.Context(), res)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get stats")
			return
		}
		writeJSON(w, http.StatusOK, statsEnvelope(res, st))
	}
}

// allowed checks the caller's role for res and records the request as
// action on the presence roster.
func (s *PortalServer) allowed(w http.ResponseWriter, r *http.Request, res *model.Resource, action string) bool {
	c := callerFrom(r)
	if err := authorize(res, c); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return false
	}
	s.touch(res, c, action)
	return true
}

func callerFrom(r *http.Request) caller {
	return caller{
		User: r.Header.Get(headerUser),
		Role: model.Role(strings.ToLower(r.Header.Get(headerRole))),
	}
}

// parseListQuery reads page, limit, search, sortBy and sortOrder. Every
// other parameter is a field filter.
func parseListQuery(r *http.Request, res *model.Resource) (store.Query, error) {
	limit := res.Limit
	if limit <= 0 {
		limit = model.DefaultLimit
	}
	q := store.Query{Criteria: model.NewFilterCriteria(limit)}
	var err error
	for key, vals := range r.URL.Query() {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		switch key {
		case "sortBy":
			q.Sort.Key = strings.TrimSpace(v)
		case "sortOrder":
			q.Sort.Direction = model.Direction(strings.ToLower(v))
		default:
			if q.Criteria, err = q.Criteria.With(key, v); err != nil {
				return store.Query{}, err
			}
		}
	}
	if page := r.URL.Query().Get(model.KeyPage); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return store.Query{}, inputError("page must be a positive integer")
		}
		q.Criteria.Page = n
	}
	if q.Sort.Key != "" && q.Sort.Direction != model.Descending {
		q.Sort.Direction = model.Ascending
	}
	return q, nil
}

// writeFailure maps an error from the server core to a status code and an
// error body in the collection's envelope.
func writeFailure(w http.ResponseWriter, res *model.Resource, err error) {
	var (
		ve *model.ValidationError
		ie inputError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Validation failed",
			"errors":  ve.Errors,
		})
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case isNotFound(err):
		writeError(w, http.StatusNotFound, singular(res)+" not found")
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
