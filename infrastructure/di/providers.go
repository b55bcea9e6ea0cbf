package di

import (
	"context"
	"net/http"

	"recall-backend/application/assistant"
	"recall-backend/application/ports"
	"recall-backend/infrastructure/config"
	dynamorepo "recall-backend/infrastructure/persistence/dynamodb"
	"recall-backend/interfaces/http/rest"
	"recall-backend/interfaces/http/rest/handlers"
	ws "recall-backend/interfaces/websocket"
	"recall-backend/pkg/auth"
	"recall-backend/pkg/notify"
	"recall-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/wire"
	"go.uber.org/zap"
)

// Container holds the wired application graph.
type Container struct {
	Config           *config.Config
	Logger           *zap.Logger
	Metrics          *observability.Collector
	Dynamic          *config.Watcher
	MemoryRepository ports.MemoryRepository
	UserRepository   ports.UserRepository
	Handler          http.Handler
}

// Shutdown releases the container's background resources.
func (c *Container) Shutdown() {
	c.Dynamic.Stop()
	_ = c.Logger.Sync()
}

// ProviderSet wires the whole application.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideDynamicWatcher,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideNotifier,
	ProvideJWTValidator,
	ProvideSessionProvider,
	ProvideUserRepository,
	ProvideMemoryRepository,
	ProvideHandler,
	wire.Struct(new(Container), "*"),
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideMetrics creates the Prometheus collector.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector("recall")
}

// ProvideDynamicWatcher loads and watches the runtime-tunable settings.
func ProvideDynamicWatcher(cfg *config.Config, logger *zap.Logger) (*config.Watcher, error) {
	return config.NewWatcher(cfg.DynamicConfigPath, logger)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) dynamorepo.API {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideNotifier creates the in-process change-notification hub.
func ProvideNotifier() *notify.Notifier {
	return notify.NewNotifier()
}

// ProvideJWTValidator creates the token validator.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
	})
}

// ProvideSessionProvider resolves owners from request-context claims.
func ProvideSessionProvider() ports.SessionProvider {
	return auth.TokenSessionProvider{}
}

// ProvideUserRepository creates the profile repository.
func ProvideUserRepository(client dynamorepo.API, cfg *config.Config, logger *zap.Logger) ports.UserRepository {
	return dynamorepo.NewUserRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideMemoryRepository creates the memory gateway.
func ProvideMemoryRepository(
	client dynamorepo.API,
	cfg *config.Config,
	sessions ports.SessionProvider,
	users ports.UserRepository,
	notifier *notify.Notifier,
	dynamic *config.Watcher,
	logger *zap.Logger,
	metrics *observability.Collector,
) ports.MemoryRepository {
	return dynamorepo.NewMemoryRepository(
		client,
		cfg.DynamoDBTable,
		cfg.IndexName,
		sessions,
		users,
		notifier,
		dynamic,
		logger,
		metrics,
	)
}

// ProvideHandler assembles the HTTP surface.
func ProvideHandler(
	cfg *config.Config,
	memories ports.MemoryRepository,
	users ports.UserRepository,
	sessions ports.SessionProvider,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	logger *zap.Logger,
) http.Handler {
	memoryHandler := handlers.NewMemoryHandler(memories, logger)
	profileHandler := handlers.NewProfileHandler(users, logger)
	assistantHandler := handlers.NewAssistantHandler(assistant.NewParser(), memories, logger)
	wsHandler := ws.NewHandler(memories, sessions, logger)

	router := rest.NewRouter(cfg, memoryHandler, profileHandler, assistantHandler, wsHandler, validator, metrics, logger)
	return router.Setup()
}
