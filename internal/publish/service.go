// Package publish wires the upload workflow together: it stages submitted
// files, plans their storage keys, records metadata and hands the transfers
// to the upload queue.
package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/maauso/wanzami-api/internal/asset"
	"github.com/maauso/wanzami-api/internal/content"
	"github.com/maauso/wanzami-api/internal/content/id"
	"github.com/maauso/wanzami-api/internal/storage"
	"github.com/maauso/wanzami-api/internal/upload"
)

// File is one submitted file. Body is read once, during staging.
type File struct {
	Role        asset.Role
	Name        string
	ContentType string
	Body        io.Reader
}

// Submission is a create or update request from the admin console.
type Submission struct {
	Fields content.Fields
	Files  []File
}

// Result is the outcome of a create or update.
type Result struct {
	Item  *content.Item
	Tasks []*upload.Task
}

// Planner computes storage keys and write grants. asset.Planner satisfies it.
type Planner interface {
	Plan(ctx context.Context, contentID string, kind content.Kind, decls []asset.Declaration) (*asset.Placement, error)
}

// Recorder persists content metadata. content.Service satisfies it.
type Recorder interface {
	Create(ctx context.Context, itemID string, fields content.Fields, assets content.Assets) (*content.Item, error)
	Update(ctx context.Context, itemID string, fields content.Fields, assets content.Assets) (*content.Item, error)
	Get(ctx context.Context, itemID string) (*content.Item, error)
	Abandon(ctx context.Context, itemID string) error
	Delete(ctx context.Context, itemID, password string) error
}

// Service orchestrates content creation and updates.
type Service struct {
	planner  Planner
	recorder Recorder
	staging  storage.Staging
	queue    *upload.Queue
	logger   *slog.Logger
	newID    func() string
}

// NewService creates a new publish Service.
func NewService(planner Planner, recorder Recorder, staging storage.Staging, queue *upload.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		planner:  planner,
		recorder: recorder,
		staging:  staging,
		queue:    queue,
		logger:   logger,
		newID:    id.Generate,
	}
}

// Create validates the submission, stages its files, plans their placement,
// records a pending item and enqueues one transfer per file.
// A failure before the item is recorded leaves no staged files behind.
func (s *Service) Create(ctx context.Context, sub Submission) (*Result, error) {
	if err := validateCreate(sub); err != nil {
		return nil, err
	}

	itemID := s.newID()
	log := s.logger.With(slog.String("content_id", itemID))

	staged, err := s.stage(ctx, sub.Files)
	if err != nil {
		return nil, err
	}

	placement, err := s.planner.Plan(ctx, itemID, sub.Fields.Kind, declarations(sub.Files))
	if err != nil {
		s.discard(ctx, stagedPaths(staged))
		return nil, fmt.Errorf("plan uploads: %w", err)
	}

	item, err := s.recorder.Create(ctx, itemID, sub.Fields, placement.Assets())
	if err != nil {
		s.discard(ctx, stagedPaths(staged))
		return nil, err
	}

	tasks := s.enqueue(itemID, sub.Files, staged, placement)
	log.Info("content submitted", slog.Int("files", len(tasks)))
	return &Result{Item: item, Tasks: tasks}, nil
}

// Update merges the submission onto an existing item. Submitted files are
// staged, planned and enqueued like on create; without files the call is a
// metadata-only edit and nothing is enqueued.
func (s *Service) Update(ctx context.Context, itemID string, sub Submission) (*Result, error) {
	existing, err := s.recorder.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if sub.Fields.Kind != "" && !sub.Fields.Kind.IsValid() {
		return nil, fmt.Errorf("%w: content type must be movie or series", content.ErrValidation)
	}
	kind := existing.Kind
	if sub.Fields.Kind != "" {
		kind = sub.Fields.Kind
	}

	if len(sub.Files) == 0 {
		item, err := s.recorder.Update(ctx, itemID, sub.Fields, content.Assets{})
		if err != nil {
			return nil, err
		}
		return &Result{Item: item}, nil
	}

	staged, err := s.stage(ctx, sub.Files)
	if err != nil {
		return nil, err
	}

	placement, err := s.planner.Plan(ctx, itemID, kind, declarations(sub.Files))
	if err != nil {
		s.discard(ctx, stagedPaths(staged))
		return nil, fmt.Errorf("plan uploads: %w", err)
	}

	item, err := s.recorder.Update(ctx, itemID, sub.Fields, placement.Assets())
	if err != nil {
		s.discard(ctx, stagedPaths(staged))
		return nil, err
	}

	tasks := s.enqueue(itemID, sub.Files, staged, placement)
	s.logger.Info("content update submitted",
		slog.String("content_id", itemID),
		slog.Int("files", len(tasks)),
	)
	return &Result{Item: item, Tasks: tasks}, nil
}

// Abandon drops the pending batch of an item that will never complete,
// removes its staged files and deletes the item with its stored assets.
func (s *Service) Abandon(ctx context.Context, itemID string) error {
	item, err := s.recorder.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != content.StatusPending {
		return content.ErrInvalidTransition
	}

	dropped := s.dropTasks(ctx, itemID)

	if err := s.recorder.Abandon(ctx, itemID); err != nil {
		return err
	}

	s.logger.Info("content abandoned",
		slog.String("content_id", itemID),
		slog.Int("dropped_tasks", dropped),
	)
	return nil
}

// Delete removes an item in any status once the password matches. Transfers
// still queued for it are dropped with their staged files.
func (s *Service) Delete(ctx context.Context, itemID, password string) error {
	if err := s.recorder.Delete(ctx, itemID, password); err != nil {
		return err
	}

	if dropped := s.dropTasks(ctx, itemID); dropped > 0 {
		s.logger.Info("pending uploads dropped with deleted content",
			slog.String("content_id", itemID),
			slog.Int("dropped_tasks", dropped),
		)
	}
	return nil
}

// dropTasks removes every task of an item from the queue and discards the
// staged files they still hold.
func (s *Service) dropTasks(ctx context.Context, itemID string) int {
	dropped := s.queue.Drop(itemID)
	paths := make([]string, 0, len(dropped))
	for _, t := range dropped {
		if t.StagedPath != "" {
			paths = append(paths, t.StagedPath)
		}
	}
	s.discard(ctx, paths)
	return len(dropped)
}

func validateCreate(sub Submission) error {
	if strings.TrimSpace(sub.Fields.Title) == "" {
		return fmt.Errorf("%w: title is required", content.ErrValidation)
	}
	if !sub.Fields.Kind.IsValid() {
		return fmt.Errorf("%w: content type must be movie or series", content.ErrValidation)
	}
	for _, f := range sub.Files {
		if f.Role.Kind() == asset.RoleMain {
			return nil
		}
	}
	return fmt.Errorf("%w: at least one main media file is required", content.ErrValidation)
}

func declarations(files []File) []asset.Declaration {
	decls := make([]asset.Declaration, len(files))
	for i, f := range files {
		decls[i] = asset.Declaration{Role: f.Role, FileName: f.Name, ContentType: f.ContentType}
	}
	return decls
}

// stage writes every file body to the staging area.
func (s *Service) stage(ctx context.Context, files []File) ([]storage.StagedFile, error) {
	staged := make([]storage.StagedFile, 0, len(files))
	for _, f := range files {
		if f.Body == nil {
			s.discard(ctx, stagedPaths(staged))
			return nil, fmt.Errorf("%w: %s has no content", content.ErrValidation, f.Role)
		}
		sf, err := s.staging.Stage(ctx, f.Name, f.Body)
		if err != nil {
			s.discard(ctx, stagedPaths(staged))
			return nil, fmt.Errorf("stage %s: %w", f.Role, err)
		}
		staged = append(staged, sf)
	}
	return staged, nil
}

func (s *Service) enqueue(itemID string, files []File, staged []storage.StagedFile, placement *asset.Placement) []*upload.Task {
	tasks := make([]*upload.Task, 0, placement.Len())
	for _, e := range placement.Entries {
		f := files[e.Source]
		tasks = append(tasks, &upload.Task{
			ContentID:   itemID,
			Role:        e.Role,
			FileName:    f.Name,
			ContentType: e.Grant.ContentType,
			Size:        staged[e.Source].Size,
			StagedPath:  staged[e.Source].Path,
			Grant:       e.Grant,
		})
	}
	return s.queue.Enqueue(tasks...)
}

// discard removes staged files.
func (s *Service) discard(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := s.staging.Discard(ctx, paths...); err != nil {
		s.logger.Warn("failed to clean staged files", slog.String("error", err.Error()))
	}
}

func stagedPaths(staged []storage.StagedFile) []string {
	paths := make([]string, 0, len(staged))
	for _, f := range staged {
		paths = append(paths, f.Path)
	}
	return paths
}
