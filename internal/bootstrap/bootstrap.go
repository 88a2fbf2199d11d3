// Package bootstrap provides dependency initialization for the Wanzami API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/wanzami-api/internal/asset"
	"github.com/maauso/wanzami-api/internal/auth"
	"github.com/maauso/wanzami-api/internal/config"
	"github.com/maauso/wanzami-api/internal/content"
	"github.com/maauso/wanzami-api/internal/identity"
	"github.com/maauso/wanzami-api/internal/publish"
	"github.com/maauso/wanzami-api/internal/storage"
	"github.com/maauso/wanzami-api/internal/upload"
)

// Dependencies holds all initialized dependencies for the HTTP server and
// the background upload pipeline.
type Dependencies struct {
	Content    *content.Service
	Publisher  *publish.Service
	Queue      *upload.Queue
	Worker     *upload.Worker
	Reconciler *upload.Reconciler
	Accounts   *identity.Cognito
	// Verifier is nil when session tokens are not verified locally.
	Verifier *auth.Verifier
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Object storage and local staging
	store, err := storage.NewS3Store(storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 store: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.AWSRegion),
	)

	staging, err := storage.NewLocalStaging(cfg.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("create staging area: %w", err)
	}

	repo, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	catalog := content.NewService(repo, store, logger,
		content.WithDeleteSecret(cfg.AdminDeletePassword),
	)

	// Upload pipeline
	queue := upload.NewQueue()
	planner := asset.NewPlanner(store,
		asset.WithGrantTTL(cfg.UploadGrantTTL),
		asset.WithLogger(logger),
	)
	publisher := publish.NewService(planner, catalog, staging, queue, logger)
	worker := upload.NewWorker(queue, staging, upload.NewHTTPTransferer(), logger,
		upload.WithConcurrency(cfg.UploadConcurrency),
		upload.WithTransferTimeout(cfg.UploadTimeout),
		upload.WithGranter(store, cfg.UploadGrantTTL),
	)
	reconciler := upload.NewReconciler(queue, catalog, logger,
		upload.WithInterval(cfg.ReconcileInterval),
	)

	// Identity
	cognitoClient, err := identity.NewCognitoClient(identity.CognitoConfig{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create Cognito client: %w", err)
	}
	accounts := identity.NewCognito(cognitoClient, cfg.CognitoClientID,
		identity.WithClientSecret(cfg.CognitoClientSecret),
		identity.WithLogger(logger),
	)

	deps := &Dependencies{
		Content:    catalog,
		Publisher:  publisher,
		Queue:      queue,
		Worker:     worker,
		Reconciler: reconciler,
		Accounts:   accounts,
	}

	if cfg.SessionVerificationEnabled() {
		verifier, err := auth.NewVerifier(auth.VerifierConfig{
			Region:     cfg.AWSRegion,
			UserPoolID: cfg.CognitoUserPoolID,
			ClientID:   cfg.CognitoClientID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create token verifier: %w", err)
		}
		deps.Verifier = verifier
		logger.Info("session verification enabled",
			slog.String("user_pool_id", cfg.CognitoUserPoolID),
		)
	} else {
		logger.Warn("COGNITO_USER_POOL_ID not set, session tokens are not verified")
	}

	return deps, nil
}

// initRepository creates the metadata store selected by configuration.
func initRepository(cfg *config.Config, logger *slog.Logger) (content.Repository, error) {
	if strings.EqualFold(cfg.MetadataStore, config.StoreMemory) {
		logger.Warn("in-memory metadata store configured, content is lost on restart")
		return content.NewMemoryRepository(), nil
	}

	client, err := content.NewDynamoClient(content.DynamoConfig{
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.DynamoDBEndpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create DynamoDB client: %w", err)
	}
	logger.Info("DynamoDB metadata store configured",
		slog.String("table", cfg.DynamoDBTable),
	)
	return content.NewDynamoRepository(client, cfg.DynamoDBTable), nil
}
