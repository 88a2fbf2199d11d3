package asset

import (
	"fmt"
	"strconv"
	"strings"
)

// RoleKind is the kind of slot a file occupies on a content item.
type RoleKind int

const (
	// RolePoster is the portrait cover image.
	RolePoster RoleKind = iota + 1
	// RoleBackdrop is the wide background image.
	RoleBackdrop
	// RoleTrailer is the preview video.
	RoleTrailer
	// RoleMain is the feature file of a movie or one episode of a series.
	RoleMain
	// RoleCast is a cast member's picture.
	RoleCast
)

// Role identifies the slot a declared file fills. Roles are comparable and
// usable as map keys. The zero Role is invalid.
type Role struct {
	kind    RoleKind
	index   int
	indexed bool
}

// Poster returns the poster role.
func Poster() Role { return Role{kind: RolePoster} }

// Backdrop returns the backdrop role.
func Backdrop() Role { return Role{kind: RoleBackdrop} }

// Trailer returns the trailer role.
func Trailer() Role { return Role{kind: RoleTrailer} }

// Main returns an un-indexed main media role. The planner assigns the index.
func Main() Role { return Role{kind: RoleMain} }

// MainAt returns the main media role for episode i.
func MainAt(i int) Role { return Role{kind: RoleMain, index: i, indexed: true} }

// CastPicture returns the picture role of the cast member at position i.
func CastPicture(i int) Role { return Role{kind: RoleCast, index: i, indexed: true} }

// Kind returns the role's kind.
func (r Role) Kind() RoleKind { return r.kind }

// Index returns the role's position and whether it has one.
func (r Role) Index() (int, bool) { return r.index, r.indexed }

// IsZero reports whether r is the zero Role.
func (r Role) IsZero() bool { return r.kind == 0 }

// String renders the category used in storage keys and on the wire.
func (r Role) String() string {
	switch r.kind {
	case RolePoster:
		return "poster"
	case RoleBackdrop:
		return "backdrop"
	case RoleTrailer:
		return "trailer"
	case RoleMain:
		if r.indexed {
			return "main-" + strconv.Itoa(r.index)
		}
		return "main"
	case RoleCast:
		return "cast-" + strconv.Itoa(r.index)
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return nil, fmt.Errorf("%w: empty role", ErrInvalidDeclaration)
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MaxRoleIndex bounds episode and cast positions.
const MaxRoleIndex = 9999

// ParseRole parses a wire category such as "poster", "main-2" or "cast-0".
func ParseRole(s string) (Role, error) {
	switch s {
	case "poster":
		return Poster(), nil
	case "backdrop":
		return Backdrop(), nil
	case "trailer":
		return Trailer(), nil
	case "main":
		return Main(), nil
	}

	prefix, num, ok := strings.Cut(s, "-")
	if !ok {
		return Role{}, fmt.Errorf("%w: unknown role %q", ErrInvalidDeclaration, s)
	}
	idx, err := strconv.Atoi(num)
	if err != nil || idx < 0 || idx > MaxRoleIndex || strconv.Itoa(idx) != num {
		return Role{}, fmt.Errorf("%w: bad role index in %q", ErrInvalidDeclaration, s)
	}

	switch prefix {
	case "main":
		return MainAt(idx), nil
	case "cast":
		return CastPicture(idx), nil
	default:
		return Role{}, fmt.Errorf("%w: unknown role %q", ErrInvalidDeclaration, s)
	}
}
