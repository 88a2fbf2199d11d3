// Package server provides the HTTP server for the Wanzami API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// RegisterRequest is the HTTP request body for creating an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=256"`
	// Username is the display name shown in the app.
	Username string `json:"username" validate:"required,max=64"`
}

// RegisterResponse is the HTTP response after creating an account.
type RegisterResponse struct {
	Message string `json:"message"`
	// User is the subject identifier of the new account.
	User string `json:"user"`
}

// VerifyRequest is the HTTP request body for confirming an account.
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,max=16"`
}

// ResendCodeRequest is the HTTP request body for a new confirmation code.
type ResendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginRequest is the HTTP request body for a password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest is the HTTP request body for a profile change.
type UpdateProfileRequest struct {
	Username string `json:"username" validate:"required_without=Picture,max=64"`
	Picture  string `json:"picture" validate:"omitempty,max=2048"`
}

// AccountResponse is the HTTP response for the signed-in account.
type AccountResponse struct {
	Username          string `json:"username"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
}

// ContentForm holds the descriptive fields of an admin multipart submission.
type ContentForm struct {
	Title       string   `validate:"omitempty,max=200"`
	Description string   `validate:"omitempty,max=5000"`
	Genres      []string `validate:"dive,max=50"`
	ContentType string   `validate:"omitempty,oneof=movie series"`
	Cast        []string `validate:"dive,max=100"`
}

// ArchiveRequest is the HTTP request body for changing visibility.
// An empty status toggles between AVAILABLE and ARCHIVED.
type ArchiveRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=AVAILABLE ARCHIVED"`
}

// DeleteRequest is the HTTP request body for deleting content.
type DeleteRequest struct {
	AdminPassword string `json:"adminPassword" validate:"required"`
}

// CastResponse is one cast member of a content item.
type CastResponse struct {
	Name   string `json:"name"`
	ImgSrc string `json:"imgSrc,omitempty"`
}

// ContentResponse is the HTTP representation of a content item.
// Asset fields hold URLs when an asset base URL is configured and storage
// keys otherwise.
type ContentResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Genres      []string       `json:"genres"`
	ContentType string         `json:"contentType"`
	Status      string         `json:"status"`
	ImgSrc      string         `json:"imgSrc,omitempty"`
	BackdropSrc string         `json:"backdropSrc,omitempty"`
	TrailerSrc  string         `json:"trailerSrc,omitempty"`
	MainSrc     []string       `json:"mainSrc"`
	TopCast     []CastResponse `json:"topCast"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// UploadResponse is the HTTP representation of an upload task.
type UploadResponse struct {
	ID        string    `json:"id"`
	ContentID string    `json:"contentId"`
	Role      string    `json:"role"`
	FileName  string    `json:"fileName"`
	Size      int64     `json:"size"`
	State     string    `json:"state"`
	Progress  float64   `json:"progress"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubmitContentResponse is the HTTP response after a create or update.
type SubmitContentResponse struct {
	Content ContentResponse  `json:"content"`
	Uploads []UploadResponse `json:"uploads"`
}

// StatusResponse reports the lifecycle status of a content item.
type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
