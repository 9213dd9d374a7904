package api

import (
	"github.com/gorilla/mux"

	"github.com/mnemolab/mnemo/internal/api/recovery"
	"github.com/mnemolab/mnemo/internal/services"
)

// NewRouter wires all HTTP routes to their handlers.
func NewRouter(svc *services.MemoryService) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware)

	h := NewMemoryHandler(svc)
	root.HandleFunc("/api/users/{userId}/memories", h.AddMemories).Methods("POST")
	root.HandleFunc("/api/users/{userId}/memories", h.DeleteMemories).Methods("DELETE")
	root.HandleFunc("/api/users/{userId}/memories", h.ListMemories).Methods("GET")
	root.HandleFunc("/api/users/{userId}/memories/search", h.SearchMemories).Methods("POST")
	root.HandleFunc("/api/users/{userId}/memories/summary", h.GetSummary).Methods("GET")
	root.HandleFunc("/api/users/{userId}/memories/{memoryId}", h.GetMemory).Methods("GET")

	healthHandler := NewHealthHandler()
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	return root
}
