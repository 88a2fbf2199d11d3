// Package auth verifies the Cognito ID tokens carried by viewer sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

const defaultRefreshInterval = time.Hour

// Claims are the ID token claims the API relies on.
type Claims struct {
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Picture           string `json:"picture,omitempty"`
	TokenUse          string `json:"token_use"`
	jwt.RegisteredClaims
}

// VerifierConfig identifies the user pool and app client whose tokens are accepted.
type VerifierConfig struct {
	Region     string
	UserPoolID string
	ClientID   string

	// JWKSURL overrides the key set location derived from the pool.
	JWKSURL         string
	RefreshInterval time.Duration
	Leeway          time.Duration
}

// Issuer returns the token issuer of the configured user pool.
func (c VerifierConfig) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

func (c VerifierConfig) jwksURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return c.Issuer() + "/.well-known/jwks.json"
}

// Verifier validates RS256 ID tokens against the pool's published key set.
type Verifier struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	audience string
	leeway   time.Duration
}

// NewVerifier fetches the pool's key set in the background and keeps it
// refreshed. A key set that is not reachable yet does not fail startup.
func NewVerifier(cfg VerifierConfig, logger *slog.Logger) (*Verifier, error) {
	if cfg.Region == "" || cfg.UserPoolID == "" {
		return nil, errors.New("auth: region and user pool id are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}
	url := cfg.jwksURL()

	storage, err := jwkset.NewStorageFromHTTP(url, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refresh,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("failed to refresh JWKS",
				slog.String("error", err.Error()),
				slog.String("url", url),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create JWKS keyfunc: %w", err)
	}

	return NewVerifierWithKeyfunc(k, cfg.Issuer(), cfg.ClientID, cfg.Leeway), nil
}

// NewVerifierWithKeyfunc creates a Verifier over an existing key set.
func NewVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer, audience string, leeway time.Duration) *Verifier {
	return &Verifier{
		jwks:     kf,
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
	}
}

// Verify parses tokenString and returns its claims when the signature,
// issuer, audience, expiry and token use all check out.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.KeyfuncCtx(ctx), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != "id" {
		return nil, fmt.Errorf("%w: token_use is %q", ErrInvalidToken, claims.TokenUse)
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
