package content

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

var (
	// ErrValidation is returned when required fields are missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is returned when the delete password does not match.
	ErrUnauthorized = errors.New("unauthorized")
)

// ObjectRemover deletes stored assets. storage.ObjectStore satisfies it.
type ObjectRemover interface {
	DeleteObjects(ctx context.Context, keys []string) error
}

// Fields are the descriptive values supplied by an admin.
// On update, empty values mean "keep what is stored".
type Fields struct {
	Title       string
	Description string
	Genres      []string
	Kind        Kind
	// CastNames lists cast members by position.
	CastNames []string
}

// Assets carries the storage keys computed for one upload batch.
type Assets struct {
	PosterKey   string
	BackdropKey string
	TrailerKey  string
	// MainKeys is positioned by episode index. Empty entries keep whatever
	// is stored at that position.
	MainKeys []string
	// CastKeys maps a cast position to the key of its new picture.
	CastKeys map[int]string
}

// castLen is the number of cast entries implied by names and pictures.
func castLen(names []string, pictures map[int]string) int {
	n := len(names)
	for idx := range pictures {
		if idx+1 > n {
			n = idx + 1
		}
	}
	return n
}

// Service records content metadata and drives its lifecycle.
type Service struct {
	repo         Repository
	remover      ObjectRemover
	logger       *slog.Logger
	deleteSecret string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDeleteSecret sets the password required by Delete.
// Without it every delete is refused.
func WithDeleteSecret(secret string) ServiceOption {
	return func(s *Service) {
		s.deleteSecret = secret
	}
}

// NewService creates a new content Service.
func NewService(repo Repository, remover ObjectRemover, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:    repo,
		remover: remover,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create writes a new pending item with the given ID.
func (s *Service) Create(ctx context.Context, itemID string, fields Fields, assets Assets) (*Item, error) {
	if strings.TrimSpace(fields.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !fields.Kind.IsValid() {
		return nil, fmt.Errorf("%w: content type must be movie or series", ErrValidation)
	}

	item := NewItem(itemID, fields.Kind)
	item.Title = strings.TrimSpace(fields.Title)
	item.Description = fields.Description
	item.Genres = cleanGenres(fields.Genres)
	item.PosterKey = assets.PosterKey
	item.BackdropKey = assets.BackdropKey
	item.TrailerKey = assets.TrailerKey
	item.MainKeys = overlayKeys(item.MainKeys, assets.MainKeys)

	n := castLen(fields.CastNames, assets.CastKeys)
	for i := 0; i < n; i++ {
		var m CastMember
		if i < len(fields.CastNames) {
			m.Name = strings.TrimSpace(fields.CastNames[i])
		}
		m.PictureKey = assets.CastKeys[i]
		item.Cast = append(item.Cast, m)
	}

	if err := s.repo.Create(ctx, item); err != nil {
		s.logger.Error("failed to create content",
			slog.String("content_id", itemID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("content created",
		slog.String("content_id", item.ID),
		slog.String("kind", string(item.Kind)),
		slog.Int("main_files", len(item.MainKeys)),
	)
	return item, nil
}

// Update merges fields and assets onto the stored item.
// Empty values keep the stored ones; the lifecycle status is not touched.
func (s *Service) Update(ctx context.Context, itemID string, fields Fields, assets Assets) (*Item, error) {
	existing, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if fields.Kind != "" && !fields.Kind.IsValid() {
		return nil, fmt.Errorf("%w: content type must be movie or series", ErrValidation)
	}

	merged := Merge(existing, fields, assets)
	if err := s.repo.Update(ctx, merged); err != nil {
		s.logger.Error("failed to update content",
			slog.String("content_id", itemID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("content updated", slog.String("content_id", itemID))
	return merged, nil
}

// Merge returns a copy of existing with every non-empty value of fields and
// assets applied. Main keys and cast entries merge by position: a new value
// replaces the stored one there and anything else is kept.
func Merge(existing *Item, fields Fields, assets Assets) *Item {
	out := existing.Clone()

	if t := strings.TrimSpace(fields.Title); t != "" {
		out.Title = t
	}
	if fields.Description != "" {
		out.Description = fields.Description
	}
	if g := cleanGenres(fields.Genres); len(g) > 0 {
		out.Genres = g
	}
	if fields.Kind != "" {
		out.Kind = fields.Kind
	}
	if assets.PosterKey != "" {
		out.PosterKey = assets.PosterKey
	}
	if assets.BackdropKey != "" {
		out.BackdropKey = assets.BackdropKey
	}
	if assets.TrailerKey != "" {
		out.TrailerKey = assets.TrailerKey
	}
	if len(assets.MainKeys) > 0 {
		out.MainKeys = overlayKeys(existing.MainKeys, assets.MainKeys)
	}

	n := castLen(fields.CastNames, assets.CastKeys)
	if n == 0 {
		return out
	}
	cast := make([]CastMember, n)
	for i := range cast {
		if i < len(existing.Cast) {
			cast[i] = existing.Cast[i]
		}
		if i < len(fields.CastNames) {
			if name := strings.TrimSpace(fields.CastNames[i]); name != "" {
				cast[i].Name = name
			}
		}
		if key := assets.CastKeys[i]; key != "" {
			cast[i].PictureKey = key
		}
	}
	out.Cast = cast
	return out
}

// overlayKeys lays next over stored position by position. Positions left
// empty on both sides are dropped so episodes stay contiguous.
func overlayKeys(stored, next []string) []string {
	out := make([]string, max(len(stored), len(next)))
	copy(out, stored)
	for i, k := range next {
		if k != "" {
			out[i] = k
		}
	}
	return slices.DeleteFunc(out, func(k string) bool { return k == "" })
}

// Finalize moves a pending item to available.
// Calling it on an item that is already available or archived is a no-op.
func (s *Service) Finalize(ctx context.Context, itemID string) error {
	err := s.repo.SetStatus(ctx, itemID, StatusAvailable, StatusPending)
	if err == nil {
		s.logger.Info("content finalized", slog.String("content_id", itemID))
		return nil
	}
	if !errors.Is(err, ErrStatusConflict) {
		return err
	}

	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status == StatusPending {
		return ErrStatusConflict
	}

	s.logger.Debug("content already finalized",
		slog.String("content_id", itemID),
		slog.String("status", string(item.Status)),
	)
	return nil
}

// SetVisibility sets an item to available or archived.
// Setting the current state again is a no-op; pending items are refused.
func (s *Service) SetVisibility(ctx context.Context, itemID string, target Status) (Status, error) {
	var from Status
	switch target {
	case StatusAvailable:
		from = StatusArchived
	case StatusArchived:
		from = StatusAvailable
	default:
		return "", fmt.Errorf("%w: status must be %s or %s", ErrValidation, StatusAvailable, StatusArchived)
	}

	err := s.repo.SetStatus(ctx, itemID, target, from)
	if err == nil {
		s.logger.Info("content visibility changed",
			slog.String("content_id", itemID),
			slog.String("status", string(target)),
		)
		return target, nil
	}
	if !errors.Is(err, ErrStatusConflict) {
		return "", err
	}

	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return "", err
	}
	if item.Status == target {
		return target, nil
	}
	return item.Status, ErrInvalidTransition
}

// ToggleArchive flips an item between available and archived.
func (s *Service) ToggleArchive(ctx context.Context, itemID string) (Status, error) {
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return "", err
	}

	switch item.Status {
	case StatusAvailable:
		return s.SetVisibility(ctx, itemID, StatusArchived)
	case StatusArchived:
		return s.SetVisibility(ctx, itemID, StatusAvailable)
	default:
		return item.Status, ErrInvalidTransition
	}
}

// Delete removes the item and requests removal of every asset it references.
// The password is checked before anything is read or written.
func (s *Service) Delete(ctx context.Context, itemID, password string) error {
	if !s.authorized(password) {
		s.logger.Warn("content delete refused", slog.String("content_id", itemID))
		return ErrUnauthorized
	}

	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	return s.remove(ctx, item)
}

// Abandon removes a pending item whose upload batch will never complete,
// together with whatever assets were already stored.
func (s *Service) Abandon(ctx context.Context, itemID string) error {
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != StatusPending {
		return ErrInvalidTransition
	}
	return s.remove(ctx, item)
}

// remove deletes assets first, then the record. Orphaned objects are
// tolerated, so an asset failure is logged and the record is still removed.
func (s *Service) remove(ctx context.Context, item *Item) error {
	if keys := item.AssetKeys(); len(keys) > 0 && s.remover != nil {
		if err := s.remover.DeleteObjects(ctx, keys); err != nil {
			s.logger.Warn("failed to delete content assets",
				slog.String("content_id", item.ID),
				slog.Int("keys", len(keys)),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.repo.Delete(ctx, item.ID); err != nil {
		return err
	}

	s.logger.Info("content deleted",
		slog.String("content_id", item.ID),
		slog.String("status", string(item.Status)),
	)
	return nil
}

// Get retrieves an item regardless of its status.
func (s *Service) Get(ctx context.Context, itemID string) (*Item, error) {
	return s.repo.FindByID(ctx, itemID)
}

// GetVisible retrieves an item only if end users may see it.
func (s *Service) GetVisible(ctx context.Context, itemID string) (*Item, error) {
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Visible() {
		return nil, ErrNotFound
	}
	return item, nil
}

// ListAll returns every item, for the admin console.
func (s *Service) ListAll(ctx context.Context) ([]*Item, error) {
	return s.repo.List(ctx)
}

// ListAvailable returns visible items, optionally restricted to one genre.
func (s *Service) ListAvailable(ctx context.Context, genre string) ([]*Item, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Item, 0, len(items))
	for _, item := range items {
		if !item.Visible() {
			continue
		}
		if genre != "" && !item.HasGenre(genre) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Service) authorized(password string) bool {
	if s.deleteSecret == "" || password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.deleteSecret)) == 1
}

func cleanGenres(genres []string) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
