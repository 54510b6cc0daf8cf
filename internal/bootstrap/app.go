package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"receipts-backend/internal/documents"
	"receipts-backend/internal/extract"
	"receipts-backend/internal/invoice"
	"receipts-backend/internal/llm"
	"receipts-backend/internal/llm/ollama"
	"receipts-backend/internal/llm/openai"
	"receipts-backend/internal/receiptcache"
	"receipts-backend/internal/receipts"
	"receipts-backend/internal/services/health"
	"receipts-backend/internal/shared/config"
	"receipts-backend/internal/shared/server"
	"receipts-backend/internal/shared/storage/db"
	"receipts-backend/internal/shared/storage/object"
	localstore "receipts-backend/internal/shared/storage/object/local"
	s3store "receipts-backend/internal/shared/storage/object/s3"
	"receipts-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Store      object.ObjectStore
	Classifier llm.Completer
	Cache      *receiptcache.Cache
	Pipeline   *invoice.Pipeline
	Service    *receipts.Service
	Handler    *receipts.Handler
	Health     *health.Service
}

// Build prepares dependencies, opens the cache and wires routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Store: store}

	cacheStore, err := buildCacheStore(ctx, app)
	if err != nil {
		return nil, err
	}

	classifier, err := NewClassifier(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Classifier = classifier
	app.Pipeline = invoice.NewPipeline(classifier)
	app.Cache = receiptcache.New(cacheStore)
	if err := app.Cache.Open(ctx); err != nil {
		app.Close()
		return nil, err
	}

	app.Service = &receipts.Service{
		Docs: &documents.Source{
			Store:  store,
			Prefix: cfg.DocumentsPrefix,
			Text:   &extract.Extractor{Store: store, Timeout: cfg.PDFTimeout},
		},
		Pipeline:   app.Pipeline,
		Cache:      app.Cache,
		PDFTimeout: cfg.PDFTimeout,
	}
	app.Handler = receipts.NewHandler(app.Service)
	if app.Handler == nil {
		app.Close()
		return nil, errors.New("failed to initialize handlers")
	}

	app.Health = buildHealth(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Handlers: []server.RouteRegistrar{app.Health, app.Handler},
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":           cfg.Env,
		"object_store":  cfg.ObjectStoreType,
		"cache_backend": cfg.CacheBackend,
		"llm_provider":  cfg.LLMProvider,
		"llm_model":     cfg.LLMModel,
	})
	return app, nil
}

// Close releases the cache and the database pool.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			telemetry.Warn("bootstrap.db_close_failed", map[string]any{"error": err.Error()})
		}
		a.DB = nil
	}
}

func buildHealth(app *App) *health.Service {
	svc := health.NewService(0)
	docs := app.Service.Docs
	svc.Add("documents", func(ctx context.Context) error {
		_, err := docs.List(ctx)
		return err
	})
	if app.DB != nil {
		sqlDB := app.DB
		svc.Add("database", sqlDB.PingContext)
	}
	return svc
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildCacheStore(ctx context.Context, app *App) (receiptcache.Store, error) {
	cfg := app.Config
	switch cfg.CacheBackend {
	case "memory":
		return receiptcache.NewMemoryStore(), nil
	case "postgres":
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.DB = sqlDB
		return &receiptcache.PGStore{DB: sqlDB}, nil
	default:
		return &receiptcache.ObjectStore{Objects: app.Store, Key: cfg.CacheKey}, nil
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for CACHE_BACKEND=postgres")
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

// NewClassifier builds the guarded text-classification client for cfg. It returns nil when the
// provider is "none".
func NewClassifier(cfg config.Config) (llm.Completer, error) {
	var base llm.Completer
	switch cfg.LLMProvider {
	case "none":
		telemetry.Info("bootstrap.classifier_disabled", nil)
		return nil, nil
	case "openai":
		client, err := openai.New(openai.Options{
			Endpoint:    cfg.LLMEndpoint,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
			Timeout:     cfg.LLMTimeout,
		})
		if err != nil {
			return nil, err
		}
		base = client
	default:
		client, err := ollama.New(ollama.Options{
			Endpoint:    cfg.LLMEndpoint,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
			Timeout:     cfg.LLMTimeout,
		})
		if err != nil {
			return nil, err
		}
		base = client
	}
	failures := cfg.LLMBreakerFailures
	if failures < 0 {
		failures = 0
	}
	return llm.NewGuard(base, llm.GuardOptions{
		Timeout:         cfg.LLMTimeout,
		MaxRetries:      cfg.LLMMaxRetries,
		BreakerFailures: uint32(failures),
		BreakerCooldown: cfg.LLMBreakerCooldown,
	}), nil
}
