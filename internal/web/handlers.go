package web

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", handleHealth)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/galleries/{gallery}/photos/{photo}/people", s.handlePeople)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	hits, err := s.store.Search(query, limit)
	if err != nil {
		if hits == nil {
			log.Printf("search failed: %v", err)
			writeError(w, http.StatusInternalServerError, "search failed")
			return
		}
		// The result set is complete; only the audit append failed.
		log.Printf("search audit append failed: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	gallery := chi.URLParam(r, "gallery")
	photo := chi.URLParam(r, "photo")

	people, err := s.store.PeopleInPhoto(gallery, photo)
	if err != nil {
		log.Printf("people lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"people": people})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
