package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/templui/docvault/internal/audit"
	"github.com/templui/docvault/internal/config"
	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/dedup"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/service"
	"github.com/templui/docvault/internal/storage"
	"github.com/templui/docvault/internal/validation"
)

type App struct {
	Cfg               *config.Config
	DB                *sqlx.DB
	Store             *repository.Store
	Registry          *prometheus.Registry
	AuthService       *service.AuthService
	TenantService     *service.TenantService
	MembershipService *service.MembershipService
	FolderService     *service.FolderService
	DocumentService   *service.DocumentService
	AuditService      *service.AuditService
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	if cfg.AutoMigrate {
		err = db.RunMigrations(context.Background(), database.DB, cfg.DBDriver)
		if err != nil {
			_ = db.Close(database)
			return nil, fmt.Errorf("failed to run migrations: %v", err)
		}
	}

	// Repositories
	store := repository.NewStore(database)

	// Storage
	blobs, err := storage.New(cfg)
	if err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}
	staging, err := storage.NewStaging(cfg.StagingPath)
	if err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to initialize staging: %v", err)
	}

	// Domain
	constraints := validation.NewFileConstraints(cfg.AllowedFileTypes, cfg.AllowedMimeTypes, cfg.MaxUploadSize)
	engine := dedup.NewEngine(store.StoredFiles(), blobs, staging, constraints)
	recorder := audit.NewRecorder(audit.StoreSink(store))
	evaluator := permission.NewEvaluator()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(database.DB, cfg.DBDriver),
	)

	// Services
	authService := service.NewAuthService(store.Users(), cfg.JWTSecret, cfg.JWTExpiry)
	tenantService := service.NewTenantService(store, recorder, cfg.TenantHostSuffix, model.IsolationMode(cfg.DefaultIsolationMode))
	membershipService := service.NewMembershipService(store, evaluator, recorder)
	folderService := service.NewFolderService(store, evaluator, recorder)
	documentService := service.NewDocumentService(
		store,
		evaluator,
		recorder,
		engine,
		blobs,
		dedup.Policy(cfg.UniquenessPolicy),
		cfg.S3PresignExpiry,
	)
	auditService := service.NewAuditService(store, evaluator, recorder)

	return &App{
		Cfg:               cfg,
		DB:                database,
		Store:             store,
		Registry:          registry,
		AuthService:       authService,
		TenantService:     tenantService,
		MembershipService: membershipService,
		FolderService:     folderService,
		DocumentService:   documentService,
		AuditService:      auditService,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return db.Close(a.DB)
	}
	return nil
}
