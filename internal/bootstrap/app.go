package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"impact-backend/internal/analyses"
	"impact-backend/internal/analysis"
	"impact-backend/internal/documents"
	"impact-backend/internal/llm"
	groq "impact-backend/internal/llm/groq"
	openai "impact-backend/internal/llm/openai"
	"impact-backend/internal/queue"
	"impact-backend/internal/repoanalyzer"
	"impact-backend/internal/shared/config"
	"impact-backend/internal/shared/server"
	"impact-backend/internal/shared/storage/db"
	"impact-backend/internal/shared/storage/object"
	localstore "impact-backend/internal/shared/storage/object/local"
	s3store "impact-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies for the API server and the queue worker.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Store             object.ObjectStore
	Queue             queue.Client
	DocumentsRepo     documents.DocumentsRepo
	AnalysesRepo      analyses.Repo
	DocumentsService  *documents.Service
	AnalysesService   *analyses.Service
	AnalysisProcessor AnalysisProcessor
	Pipeline          *analysis.Pipeline
	DocumentsHandler  *documents.Handler
	AnalysesHandler   *analyses.Handler
}

// AnalysisProcessor allows callers to override analysis processing for tests.
type AnalysisProcessor interface {
	Process(ctx context.Context, analysisID string) error
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		DocumentsHandler: app.DocumentsHandler,
		AnalysesHandler:  app.AnalysesHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var docRepo documents.DocumentsRepo
	var analysisRepo analyses.Repo

	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
	}

	docSvc := &documents.Service{
		Store: app.Store,
		Repo:  docRepo,
	}

	primary, fallback, err := buildLLMClients(app.Config)
	if err != nil {
		return err
	}

	pipeline := &analysis.Pipeline{
		Normalizer: &analysis.Normalizer{
			MaxPRDChars:  app.Config.MaxPRDChars,
			MaxArchChars: app.Config.MaxArchChars,
			RepoAnalyzer: repoanalyzer.New(time.Duration(app.Config.GitCloneTimeoutS) * time.Second),
		},
		Selector:  analysis.NewSelector(primary, fallback),
		Assembler: analysis.Assembler{NoGoRiskRatio: app.Config.NoGoRiskRatio},
		Registrar: analyses.NewObjectRegistrar(app.Store),
	}

	analysisSvc := &analyses.Service{
		Repo:     analysisRepo,
		Docs:     docSvc,
		Pipeline: pipeline,
		Queue:    app.Queue,
	}

	app.DocumentsRepo = docRepo
	app.AnalysesRepo = analysisRepo
	app.DocumentsService = docSvc
	app.AnalysesService = analysisSvc
	app.AnalysisProcessor = analysisSvc
	app.Pipeline = pipeline
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.AnalysesHandler = analyses.NewHandler(analysisSvc)

	if app.DocumentsHandler == nil || app.AnalysesHandler == nil {
		return errors.New("failed to initialize handlers")
	}

	return nil
}

// buildLLMClients constructs the primary and fallback generation backends.
// Unconfigured backends degrade to a client that always refuses, so a dev
// environment without API keys still serves placeholder reports.
func buildLLMClients(cfg config.Config) (llm.Client, llm.Client, error) {
	var primary llm.Client = notConfiguredClient{}
	if cfg.LLMProvider == "openai" {
		if apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); apiKey != "" {
			client, err := openai.NewClient(apiKey, cfg.LLMModel)
			if err != nil {
				return nil, nil, err
			}
			primary = client
		}
	}

	var fallback llm.Client = notConfiguredClient{}
	if cfg.FallbackProvider == "groq" {
		if apiKey := strings.TrimSpace(os.Getenv("GROQ_API_KEY")); apiKey != "" {
			client, err := groq.NewClient(apiKey, cfg.FallbackModel)
			if err != nil {
				return nil, nil, err
			}
			fallback = client
		}
	}

	return primary, fallback, nil
}

type notConfiguredClient struct{}

func (notConfiguredClient) GenerateText(ctx context.Context, in llm.GenerateInput) (string, error) {
	_ = ctx
	_ = in
	return "", llm.ErrNotConfigured
}
