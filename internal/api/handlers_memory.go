package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mnemolab/mnemo/internal/api/respond"
	"github.com/mnemolab/mnemo/internal/memory"
	"github.com/mnemolab/mnemo/internal/model"
	"github.com/mnemolab/mnemo/internal/services"
)

type MemoryHandler struct {
	svc *services.MemoryService
}

func NewMemoryHandler(svc *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

// AddMemories POST /api/users/{userId}/memories
// Extracts facts from the message and stores one memory per fact.
func (h *MemoryHandler) AddMemories(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var req struct {
		Message  string                 `json:"message"`
		Metadata map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.Message == "" {
		respond.WriteBadRequest(w, "message is required")
		return
	}

	out, err := h.svc.AddFromMessage(r.Context(), userID, req.Message, req.Metadata)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// DeleteMemories DELETE /api/users/{userId}/memories
// Extracts deletion facts from the message and removes the nearest memory
// for each.
func (h *MemoryHandler) DeleteMemories(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.Message == "" {
		respond.WriteBadRequest(w, "message is required")
		return
	}

	out, err := h.svc.DeleteFromMessage(r.Context(), userID, req.Message)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// SearchMemories POST /api/users/{userId}/memories/search
func (h *MemoryHandler) SearchMemories(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var req struct {
		Query string `json:"query"`
		TopN  int    `json:"topN,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.Query == "" {
		respond.WriteBadRequest(w, "query is required")
		return
	}

	results, err := h.svc.Search(r.Context(), userID, req.Query, req.TopN)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []memory.ScoredMemory{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

// ListMemories GET /api/users/{userId}/memories?limit=N
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.WriteBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	out, err := h.svc.List(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if out == nil {
		out = []*model.Memory{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"memories": out, "count": len(out)})
}

// GetSummary GET /api/users/{userId}/memories/summary
func (h *MemoryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	out, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// GetMemory GET /api/users/{userId}/memories/{memoryId}
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	out, err := h.svc.Get(r.Context(), v["userId"], v["memoryId"])
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// writeServiceError maps service errors to HTTP responses. Partial writes
// get their own message so operators know a retry reconciles the stores.
func writeServiceError(w http.ResponseWriter, err error) {
	var pw *model.PartialWriteError
	switch {
	case errors.As(err, &pw):
		respond.WriteError(w, http.StatusInternalServerError, "partial write ("+pw.Step+") for memory "+pw.MemoryID+"; retry the operation")
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	default:
		respond.WriteInternalError(w, err.Error())
	}
}
