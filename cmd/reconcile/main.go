package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	billingapp "gelato-ops/internal/billing/application"
	billing "gelato-ops/internal/billing/domain"
	billingrepo "gelato-ops/internal/billing/infrastructure/postgres"
	"gelato-ops/internal/config"
	"gelato-ops/internal/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("GELATO_CONFIG"), "path to a YAML config file")
	month := flag.String("month", "", "statement month in YYYY-MM (all months when empty)")
	clientID := flag.String("client", "", "client id (all clients when empty)")
	outDir := flag.String("out", "./out", "output directory")
	backfill := flag.Bool("backfill", false, "run a statement backfill before reconciling")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger, err := logging.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	filter := billing.StatementFilter{ClientID: *clientID}
	if *month != "" {
		start, err := billingapp.ParseMonth(*month)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		filter.Month = start
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	statements := billingrepo.NewStatementRepository(db)
	orders := billingrepo.NewOrderRepository(db)

	if *backfill {
		svc, err := billingapp.NewBackfillService(orders, statements, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "backfill:", err)
			os.Exit(2)
		}
		result, err := svc.Backfill(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "backfill:", err)
			os.Exit(1)
		}
		logger.Info("backfill finished",
			zap.Int("created", result.Created),
			zap.Int("assigned", result.Assigned),
			zap.Int("repaired", result.Repaired),
			zap.Int("skipped", result.Skipped))
	}

	rec, err := billingapp.NewReconciler(statements, orders, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reconciler:", err)
		os.Exit(2)
	}
	rows, err := rec.Run(ctx, filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reconcile:", err)
		os.Exit(1)
	}

	path := filepath.Join(*outDir, "statement_reconcile.csv")
	file, err := os.Create(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create report:", err)
		os.Exit(2)
	}
	if err := billingapp.WriteReconcileCSV(file, rows); err != nil {
		_ = file.Close()
		fmt.Fprintln(os.Stderr, "write report:", err)
		os.Exit(2)
	}
	if err := file.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close report:", err)
		os.Exit(2)
	}

	unbalanced := 0
	for _, row := range rows {
		if !row.Balanced() {
			unbalanced++
		}
	}
	fmt.Printf("Reconciled %d statements (%d out of balance), report written to %s\n", len(rows), unbalanced, path)
	if unbalanced > 0 {
		os.Exit(3)
	}
}
