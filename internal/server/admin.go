package server

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/maauso/wanzami-api/internal/asset"
	"github.com/maauso/wanzami-api/internal/content"
	"github.com/maauso/wanzami-api/internal/publish"
	"github.com/maauso/wanzami-api/internal/upload"
)

// multipartMemory is the part of a submission kept in memory; larger files
// spill to temporary files.
const multipartMemory = 32 << 20

// ListContent handles GET /api/admin/content requests. Every item is listed
// regardless of status.
func (h *Handlers) ListContent(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list content")
		return
	}
	writeJSON(w, http.StatusOK, h.toContentList(items))
}

// GetContent handles GET /api/admin/content/{id} requests.
func (h *Handlers) GetContent(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "get content")
		return
	}
	writeJSON(w, http.StatusOK, h.toContentResponse(item))
}

// CreateContent handles POST /api/admin/content multipart submissions.
// Each file part is named after its role: poster, backdrop, trailer, main,
// main-N or cast-N.
func (h *Handlers) CreateContent(w http.ResponseWriter, r *http.Request) {
	sub, cleanup, ok := h.parseSubmission(w, r)
	if !ok {
		return
	}
	defer cleanup()

	res, err := h.publisher.Create(r.Context(), sub)
	if err != nil {
		h.writeServiceError(w, err, "create content")
		return
	}

	h.logger.Info("content created",
		slog.String("content_id", res.Item.ID),
		slog.Int("uploads", len(res.Tasks)),
	)
	writeJSON(w, http.StatusAccepted, SubmitContentResponse{
		Content: h.toContentResponse(res.Item),
		Uploads: toUploadList(res.Tasks),
	})
}

// UpdateContent handles PUT /api/admin/content/{id} multipart submissions.
// Without file parts only the metadata changes.
func (h *Handlers) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, cleanup, ok := h.parseSubmission(w, r)
	if !ok {
		return
	}
	defer cleanup()

	res, err := h.publisher.Update(r.Context(), id, sub)
	if err != nil {
		h.writeServiceError(w, err, "update content")
		return
	}

	status := http.StatusOK
	if len(res.Tasks) > 0 {
		status = http.StatusAccepted
	}
	writeJSON(w, status, SubmitContentResponse{
		Content: h.toContentResponse(res.Item),
		Uploads: toUploadList(res.Tasks),
	})
}

// ArchiveContent handles POST /api/admin/content/{id}/archive requests.
// The body may name the target status; without one the status is toggled.
func (h *Handlers) ArchiveContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ArchiveRequest
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}

	var (
		status content.Status
		err    error
	)
	if req.Status == "" {
		status, err = h.catalog.ToggleArchive(r.Context(), id)
	} else {
		status, err = h.catalog.SetVisibility(r.Context(), id, content.Status(req.Status))
	}
	if err != nil {
		h.writeServiceError(w, err, "change visibility")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{ID: id, Status: string(status)})
}

// AbandonContent handles POST /api/admin/content/{id}/abandon requests.
func (h *Handlers) AbandonContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.publisher.Abandon(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "abandon content")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Upload abandoned and content removed."})
}

// DeleteContent handles DELETE /api/admin/content/{id} requests. Uploads
// still queued for the item are dropped with it.
func (h *Handlers) DeleteContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req DeleteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.publisher.Delete(r.Context(), id, req.AdminPassword); err != nil {
		h.writeServiceError(w, err, "delete content")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Content deleted successfully."})
}

// ListUploads handles GET /api/admin/uploads requests: every transfer not
// yet folded into a finalized batch. ?contentId= narrows the list.
func (h *Handlers) ListUploads(w http.ResponseWriter, r *http.Request) {
	tasks := h.uploads.Snapshot()
	if cid := r.URL.Query().Get("contentId"); cid != "" {
		tasks = slices.DeleteFunc(tasks, func(t *upload.Task) bool { return t.ContentID != cid })
	}
	writeJSON(w, http.StatusOK, toUploadList(tasks))
}

// RetryUpload handles POST /api/admin/uploads/{taskId}/retry requests.
func (h *Handlers) RetryUpload(w http.ResponseWriter, r *http.Request) {
	task, err := h.uploads.Retry(r.PathValue("taskId"))
	if err != nil {
		h.writeServiceError(w, err, "retry upload")
		return
	}
	writeJSON(w, http.StatusAccepted, toUploadResponse(task))
}

// parseSubmission reads a multipart admin submission. The returned cleanup
// closes the file parts and removes multipart temporary files.
func (h *Handlers) parseSubmission(w http.ResponseWriter, r *http.Request) (publish.Submission, func(), bool) {
	if r.ContentLength > h.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "submission is too large", "PAYLOAD_TOO_LARGE")
		return publish.Submission{}, nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "submission is too large", "PAYLOAD_TOO_LARGE")
			return publish.Submission{}, nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return publish.Submission{}, nil, false
	}
	form := r.MultipartForm

	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
		if err := form.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart files", slog.String("error", err.Error()))
		}
	}

	fields := ContentForm{
		Title:       strings.TrimSpace(firstValue(form, "title")),
		Description: strings.TrimSpace(firstValue(form, "description")),
		Genres:      splitList(form.Value["genres"]),
		ContentType: strings.TrimSpace(firstValue(form, "contentType")),
		Cast:        form.Value["cast"],
	}
	if err := h.validator.Struct(fields); err != nil {
		cleanup()
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return publish.Submission{}, nil, false
	}

	sub := publish.Submission{
		Fields: content.Fields{
			Title:       fields.Title,
			Description: fields.Description,
			Genres:      fields.Genres,
			Kind:        content.Kind(fields.ContentType),
			CastNames:   fields.Cast,
		},
	}

	// Parts are visited in field name order.
	for _, name := range slices.Sorted(maps.Keys(form.File)) {
		role, err := asset.ParseRole(name)
		if err != nil {
			cleanup()
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return publish.Submission{}, nil, false
		}
		for _, fh := range form.File[name] {
			f, err := fh.Open()
			if err != nil {
				cleanup()
				writeError(w, http.StatusBadRequest, "unreadable file part "+name, "INVALID_FORM")
				return publish.Submission{}, nil, false
			}
			closers = append(closers, f)
			sub.Files = append(sub.Files, publish.File{
				Role:        role,
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Body:        f,
			})
		}
	}
	return sub, cleanup, true
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// splitList flattens repeated and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
