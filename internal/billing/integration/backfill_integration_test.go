package integration_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingapp "gelato-ops/internal/billing/application"
	billing "gelato-ops/internal/billing/domain"
	billingrepo "gelato-ops/internal/billing/infrastructure/postgres"
)

func TestBackfill_PostgresGroupsOncePerClientMonth(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, applyMigrations(db))

	ctx := context.Background()
	resetTables(ctx, t, db)

	_, err = db.ExecContext(ctx, `INSERT INTO clients (id, business_name) VALUES ('client-a', 'Gelato Bar')`)
	require.NoError(t, err)
	insertOrder(ctx, t, db, "ord-1", "client-a", "2025-03-05", "100.00")
	insertOrder(ctx, t, db, "ord-2", "client-a", "2025-03-20", "50.00")
	insertOrder(ctx, t, db, "ord-3", "client-a", "2025-04-01", "20.00")

	orders := billingrepo.NewOrderRepository(db)
	statements := billingrepo.NewStatementRepository(db)
	svc, err := billingapp.NewBackfillService(orders, statements, nil)
	require.NoError(t, err)

	result, err := svc.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 3, result.Assigned)

	march, err := statements.FindByClientMonth(ctx, "client-a", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, march)
	assert.Equal(t, "150.00", march.TotalAmount.StringFixed(2))
	assert.Equal(t, billing.Aging1To30, march.AgingCategory)

	insertOrder(ctx, t, db, "ord-4", "client-a", "2025-03-28", "25.00")
	result, err = svc.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)

	again, err := statements.GetByID(ctx, march.ID)
	require.NoError(t, err)
	assert.Equal(t, "175.00", again.TotalAmount.StringFixed(2))

	result, err = svc.Backfill(ctx)
	require.NoError(t, err)
	assert.False(t, result.Changed())

	dup, inserted, err := statements.CreateOrGet(ctx, billing.Statement{
		ID:             "stmt-duplicate",
		ClientID:       "client-a",
		StatementMonth: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		DateGenerated:  time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, march.ID, dup.ID)

	items, err := orders.ListLineItems(ctx, "ord-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func insertOrder(ctx context.Context, t *testing.T, db *sql.DB, id, clientID, delivery, total string) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
INSERT INTO orders (id, client_id, order_date, delivery_date, total_amount, invoice_id)
VALUES ($1,$2,$3,$3,$4,$5)`, id, clientID, delivery, total, "INV-"+id)
	require.NoError(t, err)
}

func resetTables(ctx context.Context, t *testing.T, db *sql.DB) {
	t.Helper()
	for _, table := range []string{"order_items", "orders", "statements", "client_product_prices", "clients"} {
		_, err := db.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
}

func applyMigrations(db *sql.DB) error {
	content, err := os.ReadFile(filepath.Join(projectRoot(), "migrations", "001_init.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(content))
	return err
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}
