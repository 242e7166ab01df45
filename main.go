package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "gelato-ops/internal/api/http"
	"gelato-ops/internal/audit"
	"gelato-ops/internal/auth"
	billingapp "gelato-ops/internal/billing/application"
	billingrepo "gelato-ops/internal/billing/infrastructure/postgres"
	billinghttp "gelato-ops/internal/billing/interfaces/http"
	"gelato-ops/internal/blobstore"
	catalogapp "gelato-ops/internal/catalog/application"
	catalogrepo "gelato-ops/internal/catalog/infrastructure/postgres"
	cataloghttp "gelato-ops/internal/catalog/interfaces/http"
	"gelato-ops/internal/config"
	docapp "gelato-ops/internal/documents/application"
	docrepo "gelato-ops/internal/documents/infrastructure/postgres"
	dochttp "gelato-ops/internal/documents/interfaces/http"
	"gelato-ops/internal/eventing"
	"gelato-ops/internal/logging"
	"gelato-ops/internal/observability/metrics"
	prodapp "gelato-ops/internal/production/application"
	prodrepo "gelato-ops/internal/production/infrastructure/postgres"
	tplapp "gelato-ops/internal/templates/application"
	tplrepo "gelato-ops/internal/templates/infrastructure/postgres"
	tplhttp "gelato-ops/internal/templates/interfaces/http"
)

func main() {
	configPath := flag.String("config", os.Getenv("GELATO_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("config error", zap.Error(err))
	}
	logger, err := logging.NewLogger(cfg.Logger)
	if err != nil {
		zap.NewExample().Fatal("logger error", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		logger.Fatal("db open error", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.Fatal("db ping error", zap.Error(err))
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)
	bus := eventing.NewBus()

	orderRepo := billingrepo.NewOrderRepository(db)
	statementRepo := billingrepo.NewStatementRepository(db)
	clientRepo := catalogrepo.NewClientRepository(db)
	priceRepo := catalogrepo.NewPriceRepository(db)

	blobs, err := blobstore.NewLocalStore(cfg.Blob.BaseDir, cfg.Blob.PublicURL, logger)
	if err != nil {
		logger.Fatal("blob store error", zap.Error(err))
	}

	backfill, err := billingapp.NewBackfillService(orderRepo, statementRepo, logger, billingapp.WithPublisher(bus))
	if err != nil {
		logger.Fatal("backfill service error", zap.Error(err))
	}
	statements, err := billingapp.NewStatementService(statementRepo, orderRepo, backfill, bus, logger)
	if err != nil {
		logger.Fatal("statement service error", zap.Error(err))
	}

	templateService, err := tplapp.NewTemplateService(tplrepo.NewRepository(db), logger, tplapp.WithPublisher(bus))
	if err != nil {
		logger.Fatal("template service error", zap.Error(err))
	}
	seedTemplates(ctx, templateService, cfg.Templates.SeedPath, logger)

	clients, err := catalogapp.NewClientService(clientRepo, priceRepo, blobs, logger,
		catalogapp.WithBatchLimit(cfg.Prices.BatchLimit),
		catalogapp.WithPublisher(bus),
	)
	if err != nil {
		logger.Fatal("client service error", zap.Error(err))
	}

	documents, err := docapp.NewDocumentService(orderRepo, statementRepo, clientRepo, templateService, logger,
		docapp.WithArchive(blobs, docrepo.NewExportRepository(db)),
	)
	if err != nil {
		logger.Fatal("document service error", zap.Error(err))
	}
	documents.Subscribe(bus)

	reports, err := prodapp.NewReportService(prodrepo.NewSource(db), logger)
	if err != nil {
		logger.Fatal("report service error", zap.Error(err))
	}

	if result, err := backfill.Backfill(ctx); err != nil {
		logger.Error("startup backfill failed", zap.Error(err))
	} else if result.Changed() {
		logger.Info("startup backfill",
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("assigned", result.Assigned),
			zap.Int("repaired", result.Repaired),
			zap.Int("failed", result.Failed))
	}

	statementHandler, err := billinghttp.NewStatementHandler(statements, backfill, documents, auditRepo, logger)
	if err != nil {
		logger.Fatal("statement handler error", zap.Error(err))
	}
	invoiceHandler, err := dochttp.NewInvoiceHandler(documents, auditRepo, logger)
	if err != nil {
		logger.Fatal("invoice handler error", zap.Error(err))
	}
	templateHandler, err := tplhttp.NewHandler(templateService, auditRepo, logger)
	if err != nil {
		logger.Fatal("template handler error", zap.Error(err))
	}
	clientHandler, err := cataloghttp.NewHandler(clients, auditRepo, logger)
	if err != nil {
		logger.Fatal("client handler error", zap.Error(err))
	}
	reportHandler, err := apihttp.NewProductionReportHandler(reports, auditRepo, logger)
	if err != nil {
		logger.Fatal("report handler error", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/statements", statementHandler)
	mux.Handle("/api/v1/statements/", statementHandler)
	mux.Handle("/api/v1/invoices/", invoiceHandler)
	mux.Handle("/api/v1/templates/", templateHandler)
	mux.Handle("/api/v1/clients/", clientHandler)
	mux.Handle("/api/v1/reports/production.xlsx", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.Auth.JWTSecret), policy)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", zap.Error(err))
		}
	}()

	logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server error", zap.Error(err))
	}
}

func seedTemplates(ctx context.Context, service *tplapp.TemplateService, path string, logger *zap.Logger) {
	if path == "" {
		return
	}
	seeds, err := tplapp.LoadSeed(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no template seed file", zap.String("path", path))
			return
		}
		logger.Fatal("template seed error", zap.String("path", path), zap.Error(err))
	}
	if _, err := service.Seed(ctx, seeds); err != nil {
		logger.Error("template seed failed", zap.Error(err))
	}
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
