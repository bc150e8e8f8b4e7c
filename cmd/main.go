package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"nanodrive/config"
	"nanodrive/jobs"
	"nanodrive/metrics"
	"nanodrive/repositories"
	"nanodrive/routes"
	"nanodrive/services"
	"nanodrive/storage"
	"nanodrive/transform"
	"nanodrive/utils"
)

// stores bundles the document repositories with the hook that releases them.
type stores struct {
	nodes   repositories.NodeRepository
	records repositories.RecordRepository
	close   func(context.Context) error
}

func main() {
	bootLogger, err := utils.NewLogger("info", true)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	config.LoadEnvFile(bootLogger)

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.Development())
	if err != nil {
		bootLogger.Fatal("Invalid LOG_LEVEL", zap.String("level", cfg.LogLevel), zap.Error(err))
	}
	defer logger.Sync()

	cfg.Log(logger)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	hierarchy, err := services.ParseHierarchyMode(cfg.HierarchyMode)
	if err != nil {
		logger.Fatal("Invalid HIERARCHY_MODE", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	st, err := openStores(connectCtx, cfg, logger)
	if err != nil {
		cancel()
		logger.Fatal("Failed to open document store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	blobs, err := openBlobStore(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("Failed to open blob store", zap.String("backend", cfg.BlobBackend), zap.Error(err))
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := st.close(closeCtx); err != nil {
			logger.Warn("Failed to close document store", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	container := &routes.ServiceContainer{
		JWTSecret:   cfg.JWTSecret,
		MaxFileSize: cfg.MaxFileSize,
		Directory:   services.NewDirectoryService(st.nodes, logger.Named("directory")),
		Nodes:       services.NewNodeService(st.nodes, blobs, hierarchy, logger.Named("nodes"), m),
		Uploads:     services.NewUploadCoordinator(st.nodes, blobs, cfg.MaxFileSize, logger.Named("uploads"), m),
		Pipeline:    services.NewPipelineExecutor(blobs, st.records, newSelector(cfg, logger), logger.Named("pipeline"), m),
		History:     services.NewHistoryService(st.records, blobs, logger.Named("history")),
		Metrics:     m,
		Gatherer:    registry,
	}

	if cfg.SweepInterval > 0 {
		sweeper := jobs.NewOrphanSweeper(st.nodes, st.records, blobs, cfg.SweepInterval, cfg.SweepGrace, logger, m)
		go sweeper.Start(ctx)
	}

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(container, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting nanodrive server", zap.String("port", cfg.Port), zap.String("hierarchy_mode", string(hierarchy)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			client.Disconnect(ctx)
			return nil, err
		}
		logger.Info("Connected to MongoDB", zap.String("database", cfg.DatabaseName))

		db := client.Database(cfg.DatabaseName)
		nodes := repositories.NewMongoNodeRepository(db)
		records := repositories.NewMongoRecordRepository(db)
		if err := nodes.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to create node indexes", zap.Error(err))
		}
		if err := records.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to create record indexes", zap.Error(err))
		}
		return &stores{nodes: nodes, records: records, close: client.Disconnect}, nil

	case "sql":
		db, dialect, err := repositories.OpenSQL(ctx, cfg.SQLDriver, cfg.SQLDSN)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to SQL database", zap.String("driver", cfg.SQLDriver))
		return &stores{
			nodes:   repositories.NewSQLNodeRepository(db, dialect),
			records: repositories.NewSQLRecordRepository(db, dialect),
			close:   func(context.Context) error { return db.Close() },
		}, nil

	default:
		logger.Warn("Using in-memory document store; data is lost on restart")
		return &stores{
			nodes:   repositories.NewMemoryNodeRepository(),
			records: repositories.NewMemoryRecordRepository(),
			close:   func(context.Context) error { return nil },
		}, nil
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.BlobBackend {
	case "b2":
		return storage.NewB2Store(ctx, cfg.B2ApplicationKeyID, cfg.B2ApplicationKey, cfg.B2BucketName, cfg.URLTTL)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3Endpoint,
			Bucket:       cfg.S3Bucket,
			URLTTL:       cfg.URLTTL,
		})
	default:
		return storage.NewMemoryStore(memoryBlobURL(cfg.PublicURL)), nil
	}
}

// memoryBlobURL points memory-backed download URLs at the blob route.
func memoryBlobURL(publicURL string) string {
	return strings.TrimSuffix(publicURL, "/") + "/api/blobs/"
}

// newSelector always offers test mode; full mode needs a configured endpoint.
func newSelector(cfg *config.Config, logger *zap.Logger) *transform.Selector {
	selector := transform.NewSelector().Register(transform.ModeTest, transform.NewPlaceholder())
	if cfg.TransformEndpoint == "" {
		logger.Warn("TRANSFORM_ENDPOINT not set; only test-mode transforms are available")
		return selector
	}
	return selector.Register(transform.ModeFull, transform.NewHTTPTransformer(transform.HTTPConfig{
		Endpoint: cfg.TransformEndpoint,
		APIKey:   cfg.TransformAPIKey,
		Timeout:  cfg.TransformTimeout,
		RPS:      cfg.TransformRPS,
	}))
}
