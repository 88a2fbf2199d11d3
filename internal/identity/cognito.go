// Package identity wraps the Cognito user pool used for viewer accounts:
// registration, confirmation, password login and profile attributes.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
)

// Domain errors. Provider failures are wrapped in one of these so callers
// never need to inspect SDK types.
var (
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrNotConfirmed        = errors.New("user is not confirmed")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrInvalidCode         = errors.New("invalid confirmation code")
	ErrCodeExpired         = errors.New("confirmation code expired")
	ErrInvalidInput        = errors.New("invalid input")
	ErrRateLimited         = errors.New("too many requests")
	ErrChallenge           = errors.New("additional authentication challenge required")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

var errorCodes = map[string]error{
	"UsernameExistsException":        ErrUserExists,
	"AliasExistsException":           ErrUserExists,
	"UserNotFoundException":          ErrUserNotFound,
	"UserNotConfirmedException":      ErrNotConfirmed,
	"NotAuthorizedException":         ErrNotAuthorized,
	"PasswordResetRequiredException": ErrNotAuthorized,
	"CodeMismatchException":          ErrInvalidCode,
	"ExpiredCodeException":           ErrCodeExpired,
	"InvalidPasswordException":       ErrInvalidInput,
	"InvalidParameterException":      ErrInvalidInput,
	"LimitExceededException":         ErrRateLimited,
	"TooManyRequestsException":       ErrRateLimited,
	"TooManyFailedAttemptsException": ErrRateLimited,
}

// CognitoAPI is the subset of the Cognito client used by Cognito.
type CognitoAPI interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, params *cip.ResendConfirmationCodeInput, optFns ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	UpdateUserAttributes(ctx context.Context, params *cip.UpdateUserAttributesInput, optFns ...func(*cip.Options)) (*cip.UpdateUserAttributesOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

// CognitoConfig holds the configuration for the Cognito client.
type CognitoConfig struct {
	Region          string
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// NewCognitoClient builds a Cognito identity provider client from cfg.
func NewCognitoClient(cfg CognitoConfig) (*cip.Client, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return cip.NewFromConfig(awsCfg), nil
}

// Registration is a new viewer account.
type Registration struct {
	Email    string
	Password string
	Username string // stored as preferred_username
}

// Tokens are the credentials issued by a successful login.
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int32 // seconds
}

// Profile is the account view of a user.
type Profile struct {
	Username          string `json:"username"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
}

// ProfileUpdate carries the editable profile attributes. Empty fields are
// left unchanged.
type ProfileUpdate struct {
	PreferredUsername string
	Picture           string
}

// Cognito performs account operations against one user pool app client.
type Cognito struct {
	api          CognitoAPI
	clientID     string
	clientSecret string
	logger       *slog.Logger
}

// Option configures Cognito.
type Option func(*Cognito)

// WithClientSecret enables SECRET_HASH signing for app clients that have a secret.
func WithClientSecret(secret string) Option {
	return func(c *Cognito) {
		c.clientSecret = secret
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cognito) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCognito creates a Cognito wrapper for the given app client.
func NewCognito(api CognitoAPI, clientID string, opts ...Option) *Cognito {
	c := &Cognito{
		api:      api,
		clientID: clientID,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register signs up a user with the email as username. It returns the
// user's subject identifier.
func (c *Cognito) Register(ctx context.Context, reg Registration) (string, error) {
	out, err := c.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:   aws.String(c.clientID),
		Username:   aws.String(reg.Email),
		Password:   aws.String(reg.Password),
		SecretHash: c.secretHash(reg.Email),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(reg.Email)},
			{Name: aws.String("preferred_username"), Value: aws.String(reg.Username)},
		},
	})
	if err != nil {
		return "", classify("sign up", err)
	}
	c.logger.Info("user registered", slog.String("user_sub", aws.ToString(out.UserSub)))
	return aws.ToString(out.UserSub), nil
}

// Confirm verifies the code sent to email after registration.
func (c *Cognito) Confirm(ctx context.Context, email, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		SecretHash:       c.secretHash(email),
	})
	if err != nil {
		return classify("confirm sign up", err)
	}
	return nil
}

// ResendCode sends a fresh confirmation code to email.
func (c *Cognito) ResendCode(ctx context.Context, email string) error {
	_, err := c.api.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:   aws.String(c.clientID),
		Username:   aws.String(email),
		SecretHash: c.secretHash(email),
	})
	if err != nil {
		return classify("resend confirmation code", err)
	}
	return nil
}

// Login authenticates with email and password.
func (c *Cognito) Login(ctx context.Context, email, password string) (*Tokens, error) {
	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	}
	if hash := c.secretHash(email); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	out, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(c.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, classify("initiate auth", err)
	}

	res := out.AuthenticationResult
	if res == nil {
		return nil, fmt.Errorf("%w: %s", ErrChallenge, out.ChallengeName)
	}
	return &Tokens{
		AccessToken:  aws.ToString(res.AccessToken),
		IDToken:      aws.ToString(res.IdToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresIn:    res.ExpiresIn,
	}, nil
}

// Logout revokes every token issued to the user of accessToken.
func (c *Cognito) Logout(ctx context.Context, accessToken string) error {
	_, err := c.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return classify("global sign out", err)
	}
	return nil
}

// Profile returns the account attributes of the user of accessToken.
func (c *Cognito) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	out, err := c.api.GetUser(ctx, &cip.GetUserInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return nil, classify("get user", err)
	}

	p := &Profile{Username: aws.ToString(out.Username)}
	for _, attr := range out.UserAttributes {
		switch aws.ToString(attr.Name) {
		case "email":
			p.Email = aws.ToString(attr.Value)
		case "preferred_username":
			p.PreferredUsername = aws.ToString(attr.Value)
		case "picture":
			p.Picture = aws.ToString(attr.Value)
		}
	}
	return p, nil
}

// UpdateProfile changes the display name and picture of the user of accessToken.
func (c *Cognito) UpdateProfile(ctx context.Context, accessToken string, upd ProfileUpdate) error {
	var attrs []types.AttributeType
	if v := strings.TrimSpace(upd.PreferredUsername); v != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("preferred_username"), Value: aws.String(v)})
	}
	if v := strings.TrimSpace(upd.Picture); v != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("picture"), Value: aws.String(v)})
	}
	if len(attrs) == 0 {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	_, err := c.api.UpdateUserAttributes(ctx, &cip.UpdateUserAttributesInput{
		AccessToken:    aws.String(accessToken),
		UserAttributes: attrs,
	})
	if err != nil {
		return classify("update user attributes", err)
	}
	return nil
}

// secretHash computes SECRET_HASH for username, or nil when the app client
// has no secret.
func (c *Cognito) secretHash(username string) *string {
	if c.clientSecret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(c.clientSecret))
	mac.Write([]byte(username + c.clientID))
	return aws.String(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

// classify maps a provider error onto a domain error, keeping the
// provider's message.
func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if target, ok := errorCodes[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%w: %s", target, apiErr.ErrorMessage())
		}
		return fmt.Errorf("%w: %s: %s", ErrProviderUnavailable, op, apiErr.ErrorCode())
	}
	return fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, op, err)
}
