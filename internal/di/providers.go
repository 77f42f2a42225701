// Package di wires the application with Google Wire.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/wire"
	"go.uber.org/zap"

	"savethespice-backend/internal/clock"
	"savethespice-backend/internal/config"
	"savethespice-backend/internal/domain"
	"savethespice-backend/internal/infrastructure/events"
	"savethespice-backend/internal/infrastructure/images"
	"savethespice-backend/internal/infrastructure/observability"
	"savethespice-backend/internal/interfaces/http/rest"
	"savethespice-backend/internal/repository"
	"savethespice-backend/internal/repository/ddb"
	"savethespice-backend/internal/repository/memory"
	"savethespice-backend/internal/service/batch"
	"savethespice-backend/internal/service/category"
	"savethespice-backend/internal/service/identity"
	"savethespice-backend/internal/service/meta"
	"savethespice-backend/internal/service/recipe"
	"savethespice-backend/internal/service/relationship"
	"savethespice-backend/internal/service/share"
)

// Container holds the wired application.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      repository.Store
	Collector  *observability.Collector
	Executor   *batch.Executor
	Allocator  *identity.Allocator
	Maintainer *relationship.Maintainer
	Recipes    *recipe.Service
	Categories *category.Service
	Meta       *meta.Service
	Shares     *share.Service
	Router     *rest.Router
	Tracing    TracingShutdown
}

// TracingShutdown flushes and stops the tracer provider.
type TracingShutdown func(context.Context) error

// SuperSet is every provider the application needs.
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	ServiceProviders,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// ConfigProviders derive values from the configuration.
var ConfigProviders = wire.NewSet(
	ProvideLogger,
	ProvideTables,
	ProvideClock,
)

// InfrastructureProviders build AWS clients and the adapters on top of them.
var InfrastructureProviders = wire.NewSet(
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideS3Client,
	ProvideEventBridgeClient,
	ProvideCollector,
	ProvideTracing,
	ProvideStore,
	ProvideEventBus,
	ProvideImageHost,
)

// ServiceProviders build the domain services.
var ServiceProviders = wire.NewSet(
	ProvideExecutor,
	identity.NewAllocator,
	ProvideMaintainer,
	ProvideCategoryService,
	ProvideRecipeService,
	meta.NewService,
	ProvideShareService,
)

// ProvideLogger creates the application logger. The cleanup flushes buffered entries.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Environment == config.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build(zap.Fields(zap.String("environment", string(cfg.Environment))))
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideTables returns the physical table names.
func ProvideTables(cfg *config.Config) repository.Tables {
	return cfg.RepositoryTables()
}

// ProvideClock returns the wall clock.
func ProvideClock() clock.Clock {
	return clock.System{}
}

// ProvideAWSConfig loads the default AWS configuration for the configured region.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at Storage.Endpoint when set.
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
		}
	})
}

// ProvideS3Client creates an S3 client.
func ProvideS3Client(awsCfg aws.Config) *awss3.Client {
	return awss3.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client.
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCollector creates the Prometheus collector.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracing installs the tracer provider. The cleanup flushes pending spans.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (TracingShutdown, func(), error) {
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}
	return shutdown, cleanup, nil
}

// ProvideStore selects the store driver and instruments it.
func ProvideStore(
	cfg *config.Config,
	client *awsdynamodb.Client,
	clk clock.Clock,
	collector *observability.Collector,
	logger *zap.Logger,
) repository.Store {
	var store repository.Store
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.NewStore(clk)
	default:
		store = ddb.NewStore(client, clk, logger)
	}
	return observability.InstrumentStore(store, collector)
}

// ProvideEventBus publishes to EventBridge when a bus is configured and logs otherwise.
func ProvideEventBus(
	cfg *config.Config,
	client *awseventbridge.Client,
	collector *observability.Collector,
	logger *zap.Logger,
) domain.EventBus {
	var bus domain.EventBus = events.NewLogBus(logger)
	if cfg.Events.BusName != "" {
		bus = events.NewPublisher(client, cfg.Events.BusName, cfg.Events.Source, logger)
	}
	return observability.CountEvents(bus, collector)
}

// ProvideImageHost re-hosts images in S3 when a bucket is configured.
func ProvideImageHost(cfg *config.Config, client *awss3.Client, logger *zap.Logger) recipe.ImageHost {
	if cfg.Images.Bucket == "" {
		return images.Passthrough{}
	}
	return images.NewS3Host(client, images.Options{
		Bucket: cfg.Images.Bucket,
		Prefix: cfg.Images.Prefix,
	}, logger)
}

// ProvideExecutor creates the batch executor.
func ProvideExecutor(cfg *config.Config, logger *zap.Logger) *batch.Executor {
	return batch.NewExecutor(cfg.Batch.MaxConcurrency, logger)
}

// ProvideMaintainer creates the relationship maintainer.
func ProvideMaintainer(
	store repository.Store,
	tables repository.Tables,
	bus domain.EventBus,
	clk clock.Clock,
	logger *zap.Logger,
) *relationship.Maintainer {
	return relationship.NewMaintainer(store, tables, bus, clk, logger)
}

// ProvideCategoryService creates the category service.
func ProvideCategoryService(
	store repository.Store,
	tables repository.Tables,
	ids *identity.Allocator,
	refs *relationship.Maintainer,
	executor *batch.Executor,
	bus domain.EventBus,
	clk clock.Clock,
	logger *zap.Logger,
) *category.Service {
	return category.NewService(store, tables, ids, refs, executor, bus, clk, logger)
}

// ProvideRecipeService creates the recipe service.
func ProvideRecipeService(
	store repository.Store,
	tables repository.Tables,
	ids *identity.Allocator,
	categories *category.Service,
	host recipe.ImageHost,
	executor *batch.Executor,
	bus domain.EventBus,
	clk clock.Clock,
	logger *zap.Logger,
) *recipe.Service {
	return recipe.NewService(store, tables, ids, categories, host, executor, bus, clk, logger)
}

// ProvideShareService creates the share service.
func ProvideShareService(
	store repository.Store,
	tables repository.Tables,
	recipes *recipe.Service,
	categories *category.Service,
	clk clock.Clock,
	logger *zap.Logger,
) *share.Service {
	return share.NewService(store, tables, recipes, categories, clk, logger)
}

// ProvideRouter creates the HTTP router.
func ProvideRouter(
	recipes *recipe.Service,
	categories *category.Service,
	metaSvc *meta.Service,
	shares *share.Service,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(recipes, categories, metaSvc, shares, collector, cfg, logger)
}
