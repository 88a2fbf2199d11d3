package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/wanzami-api/internal/asset"
	"github.com/maauso/wanzami-api/internal/content"
	"github.com/maauso/wanzami-api/internal/identity"
	"github.com/maauso/wanzami-api/internal/publish"
	"github.com/maauso/wanzami-api/internal/upload"
)

const defaultMaxUploadBytes = 5 << 30

// Catalog reads and manages recorded content. content.Service satisfies it.
type Catalog interface {
	ListAvailable(ctx context.Context, genre string) ([]*content.Item, error)
	GetVisible(ctx context.Context, itemID string) (*content.Item, error)
	ListAll(ctx context.Context) ([]*content.Item, error)
	Get(ctx context.Context, itemID string) (*content.Item, error)
	SetVisibility(ctx context.Context, itemID string, target content.Status) (content.Status, error)
	ToggleArchive(ctx context.Context, itemID string) (content.Status, error)
}

// Publisher accepts admin submissions. publish.Service satisfies it.
type Publisher interface {
	Create(ctx context.Context, sub publish.Submission) (*publish.Result, error)
	Update(ctx context.Context, itemID string, sub publish.Submission) (*publish.Result, error)
	Abandon(ctx context.Context, itemID string) error
	Delete(ctx context.Context, itemID, password string) error
}

// Uploads exposes the transfer queue. upload.Queue satisfies it.
type Uploads interface {
	Snapshot() []*upload.Task
	Retry(taskID string) (*upload.Task, error)
}

// Accounts performs viewer account operations. identity.Cognito satisfies it.
type Accounts interface {
	Register(ctx context.Context, reg identity.Registration) (string, error)
	Confirm(ctx context.Context, email, code string) error
	ResendCode(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*identity.Tokens, error)
	Logout(ctx context.Context, accessToken string) error
	Profile(ctx context.Context, accessToken string) (*identity.Profile, error)
	UpdateProfile(ctx context.Context, accessToken string, upd identity.ProfileUpdate) error
}

// Services groups the application services the handlers call.
type Services struct {
	Catalog   Catalog
	Publisher Publisher
	Uploads   Uploads
	Accounts  Accounts
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	catalog   Catalog
	publisher Publisher
	uploads   Uploads
	accounts  Accounts
	validator *validator.Validate
	logger    *slog.Logger

	assetBaseURL   string
	cookieSecure   bool
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAssetBaseURL makes content responses carry public URLs built from base
// instead of raw storage keys.
func WithAssetBaseURL(base string) HandlerOption {
	return func(h *Handlers) {
		h.assetBaseURL = strings.TrimRight(base, "/")
	}
}

// WithCookieSecure sets the Secure attribute on session cookies.
func WithCookieSecure(secure bool) HandlerOption {
	return func(h *Handlers) {
		h.cookieSecure = secure
	}
}

// WithMaxUploadBytes limits the size of an admin multipart submission.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Services, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		catalog:        svc.Catalog,
		publisher:      svc.Publisher,
		uploads:        svc.Uploads,
		accounts:       svc.Accounts,
		validator:      validator.New(),
		logger:         logger,
		cookieSecure:   true,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// decodeJSON decodes and validates a JSON request body into dst.
// It writes the error response itself and reports whether decoding succeeded.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeServiceError maps a domain error onto an HTTP status and error code.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error, op string) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
		msg = op + " failed"
	}
	writeError(w, status, msg, code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, content.ErrValidation), errors.Is(err, asset.ErrInvalidDeclaration):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, content.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, "CONTENT_NOT_FOUND"
	case errors.Is(err, upload.ErrTaskNotFound):
		return http.StatusNotFound, "TASK_NOT_FOUND"
	case errors.Is(err, content.ErrInvalidTransition), errors.Is(err, upload.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, content.ErrAlreadyExists), errors.Is(err, content.ErrStatusConflict):
		return http.StatusConflict, "CONFLICT"

	case errors.Is(err, identity.ErrUserExists):
		return http.StatusConflict, "USER_EXISTS"
	case errors.Is(err, identity.ErrInvalidCode):
		return http.StatusBadRequest, "INVALID_CODE"
	case errors.Is(err, identity.ErrCodeExpired):
		return http.StatusBadRequest, "CODE_EXPIRED"
	case errors.Is(err, identity.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, identity.ErrNotAuthorized):
		return http.StatusUnauthorized, "NOT_AUTHORIZED"
	case errors.Is(err, identity.ErrChallenge):
		return http.StatusUnauthorized, "CHALLENGE_REQUIRED"
	case errors.Is(err, identity.ErrNotConfirmed):
		return http.StatusForbidden, "USER_NOT_CONFIRMED"
	case errors.Is(err, identity.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND"
	case errors.Is(err, identity.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"

	case errors.Is(err, content.ErrStoreUnavailable),
		errors.Is(err, asset.ErrGrantUnavailable),
		errors.Is(err, identity.ErrProviderUnavailable):
		return http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// assetURL turns a storage key into the value exposed to clients.
func (h *Handlers) assetURL(key string) string {
	if key == "" || h.assetBaseURL == "" {
		return key
	}
	return h.assetBaseURL + "/" + key
}

func (h *Handlers) toContentResponse(item *content.Item) ContentResponse {
	mains := make([]string, 0, len(item.MainKeys))
	for _, k := range item.MainKeys {
		mains = append(mains, h.assetURL(k))
	}
	cast := make([]CastResponse, 0, len(item.Cast))
	for _, c := range item.Cast {
		cast = append(cast, CastResponse{Name: c.Name, ImgSrc: h.assetURL(c.PictureKey)})
	}
	genres := item.Genres
	if genres == nil {
		genres = []string{}
	}
	return ContentResponse{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Genres:      genres,
		ContentType: string(item.Kind),
		Status:      string(item.Status),
		ImgSrc:      h.assetURL(item.PosterKey),
		BackdropSrc: h.assetURL(item.BackdropKey),
		TrailerSrc:  h.assetURL(item.TrailerKey),
		MainSrc:     mains,
		TopCast:     cast,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func (h *Handlers) toContentList(items []*content.Item) []ContentResponse {
	out := make([]ContentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, h.toContentResponse(item))
	}
	return out
}

func toUploadResponse(t *upload.Task) UploadResponse {
	return UploadResponse{
		ID:        t.ID,
		ContentID: t.ContentID,
		Role:      t.Role.String(),
		FileName:  t.FileName,
		Size:      t.Size,
		State:     string(t.State),
		Progress:  t.Progress,
		Error:     t.Error,
		UpdatedAt: t.UpdatedAt,
	}
}

func toUploadList(tasks []*upload.Task) []UploadResponse {
	out := make([]UploadResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toUploadResponse(t))
	}
	return out
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
