// Package asset computes where each declared file of a content item is
// stored and obtains one write grant per file from the object store.
package asset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/wanzami-api/internal/content"
	"github.com/maauso/wanzami-api/internal/storage"
)

const (
	// DefaultGrantTTL is how long an issued write grant stays valid.
	DefaultGrantTTL = 10 * time.Minute

	defaultContentType = "application/octet-stream"
	defaultConcurrency = 4
)

var (
	// ErrInvalidDeclaration is returned when a file declaration cannot be planned.
	ErrInvalidDeclaration = errors.New("invalid file declaration")
	// ErrGrantUnavailable is returned when the object store refuses to issue a grant.
	ErrGrantUnavailable = errors.New("upload grant unavailable")
)

// Declaration is one file the caller intends to upload.
type Declaration struct {
	Role        Role
	FileName    string
	ContentType string
}

// Entry is the plan for one declaration.
type Entry struct {
	// Source is the position of the declaration in the Plan input.
	Source int
	Role   Role
	Key    string
	Grant  storage.Grant
}

// Placement is the result of planning a batch of declarations.
type Placement struct {
	ContentID string
	Kind      content.Kind
	Keys      map[Role]string
	Grants    map[Role]storage.Grant
	// Entries follow declaration order.
	Entries []Entry
}

// Len returns the number of planned files.
func (p *Placement) Len() int { return len(p.Entries) }

// PosterKey returns the planned poster key, if any.
func (p *Placement) PosterKey() string { return p.Keys[Poster()] }

// BackdropKey returns the planned backdrop key, if any.
func (p *Placement) BackdropKey() string { return p.Keys[Backdrop()] }

// TrailerKey returns the planned trailer key, if any.
func (p *Placement) TrailerKey() string { return p.Keys[Trailer()] }

// MainKeys returns the planned main media keys positioned by episode index.
// Indexes absent from the placement are left empty.
func (p *Placement) MainKeys() []string {
	var keys []string
	for role, key := range p.Keys {
		if role.Kind() != RoleMain {
			continue
		}
		idx, _ := role.Index()
		if idx >= len(keys) {
			keys = append(keys, make([]string, idx+1-len(keys))...)
		}
		keys[idx] = key
	}
	if keys == nil {
		return []string{}
	}
	return keys
}

// CastKey returns the planned picture key of cast member i, if any.
func (p *Placement) CastKey(i int) string { return p.Keys[CastPicture(i)] }

// Assets converts the placement into the keys recorded on a content item.
func (p *Placement) Assets() content.Assets {
	a := content.Assets{
		PosterKey:   p.PosterKey(),
		BackdropKey: p.BackdropKey(),
		TrailerKey:  p.TrailerKey(),
		MainKeys:    p.MainKeys(),
	}
	for role, key := range p.Keys {
		if role.Kind() != RoleCast {
			continue
		}
		if a.CastKeys == nil {
			a.CastKeys = make(map[int]string)
		}
		idx, _ := role.Index()
		a.CastKeys[idx] = key
	}
	return a
}

// Granter issues write grants. storage.ObjectStore satisfies it.
type Granter interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (storage.Grant, error)
}

// Planner turns declarations into storage keys and write grants.
type Planner struct {
	granter     Granter
	ttl         time.Duration
	concurrency int
	logger      *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithGrantTTL sets the validity of issued grants.
func WithGrantTTL(ttl time.Duration) Option {
	return func(p *Planner) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithConcurrency bounds the number of grant requests in flight.
func WithConcurrency(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the planner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPlanner creates a Planner backed by granter.
func NewPlanner(granter Granter, opts ...Option) *Planner {
	p := &Planner{
		granter:     granter,
		ttl:         DefaultGrantTTL,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key builds the storage key for a file of a content item.
func Key(contentID string, role Role, fileName string) string {
	return fmt.Sprintf("content/%s/%s/%s", contentID, role, SanitizeFileName(fileName))
}

// SanitizeFileName drops any directory part and replaces whitespace with "_".
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name)
}

// Plan resolves roles, computes keys and requests one grant per declaration.
// If any grant cannot be issued the whole call fails and no placement is returned.
func (p *Planner) Plan(ctx context.Context, contentID string, kind content.Kind, decls []Declaration) (*Placement, error) {
	if contentID == "" {
		return nil, fmt.Errorf("%w: content id is required", ErrInvalidDeclaration)
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown content kind %q", ErrInvalidDeclaration, kind)
	}

	roles, err := resolveRoles(kind, decls)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(decls))
	for i, d := range decls {
		name := SanitizeFileName(d.FileName)
		if name == "" || name == "." || name == "/" {
			return nil, fmt.Errorf("%w: %s has no file name", ErrInvalidDeclaration, roles[i])
		}
		entries[i] = Entry{
			Source: i,
			Role:   roles[i],
			Key:    Key(contentID, roles[i], name),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range entries {
		ct := decls[i].ContentType
		if ct == "" {
			ct = defaultContentType
		}
		g.Go(func() error {
			grant, err := p.granter.PresignPut(gctx, entries[i].Key, ct, p.ttl)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrGrantUnavailable, entries[i].Role, err)
			}
			entries[i].Grant = grant
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Error("failed to plan uploads",
			slog.String("content_id", contentID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	placement := &Placement{
		ContentID: contentID,
		Kind:      kind,
		Keys:      make(map[Role]string, len(entries)),
		Grants:    make(map[Role]storage.Grant, len(entries)),
		Entries:   entries,
	}
	for _, e := range entries {
		placement.Keys[e.Role] = e.Key
		placement.Grants[e.Role] = e.Grant
	}

	p.logger.Debug("uploads planned",
		slog.String("content_id", contentID),
		slog.Int("files", len(entries)),
	)
	return placement, nil
}

// resolveRoles validates declarations against kind and assigns episode
// indexes to un-indexed series mains in declaration order.
func resolveRoles(kind content.Kind, decls []Declaration) ([]Role, error) {
	roles := make([]Role, len(decls))
	seen := make(map[Role]bool, len(decls))
	claimed := make(map[int]bool)

	for i, d := range decls {
		if d.Role.IsZero() {
			return nil, fmt.Errorf("%w: declaration %d has no role", ErrInvalidDeclaration, i)
		}
		if d.Role.Kind() != RoleMain {
			continue
		}
		idx, indexed := d.Role.Index()
		if kind == content.KindMovie && indexed && idx != 0 {
			return nil, fmt.Errorf("%w: a movie has a single main file", ErrInvalidDeclaration)
		}
		if kind == content.KindSeries && indexed {
			if claimed[idx] {
				return nil, fmt.Errorf("%w: duplicate role %s", ErrInvalidDeclaration, d.Role)
			}
			claimed[idx] = true
		}
	}

	next := 0
	for i, d := range decls {
		role := d.Role
		if role.Kind() == RoleMain {
			switch kind {
			case content.KindMovie:
				role = Main()
			case content.KindSeries:
				if _, indexed := role.Index(); !indexed {
					for claimed[next] {
						next++
					}
					role = MainAt(next)
					claimed[next] = true
				}
			}
		}
		if seen[role] {
			return nil, fmt.Errorf("%w: duplicate role %s", ErrInvalidDeclaration, role)
		}
		seen[role] = true
		roles[i] = role
	}
	return roles, nil
}
