package server

import (
	"net/http"
	"strings"
)

// ListMovies handles GET /api/movies requests. Only available content is
// listed; ?genre= narrows the list to one genre.
func (h *Handlers) ListMovies(w http.ResponseWriter, r *http.Request) {
	genre := strings.TrimSpace(r.URL.Query().Get("genre"))

	items, err := h.catalog.ListAvailable(r.Context(), genre)
	if err != nil {
		h.writeServiceError(w, err, "list movies")
		return
	}
	writeJSON(w, http.StatusOK, h.toContentList(items))
}

// GetMovie handles GET /api/movies/{id} requests.
func (h *Handlers) GetMovie(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "movie ID is required", "MISSING_ID")
		return
	}

	item, err := h.catalog.GetVisible(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get movie")
		return
	}
	writeJSON(w, http.StatusOK, h.toContentResponse(item))
}
