package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mahima-medicare/healthstack-backend/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestProductsMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_products_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS products",
		"available_qty INTEGER NOT NULL DEFAULT 0 CHECK (available_qty >= 0)",
		"reserved_qty  INTEGER NOT NULL DEFAULT 0 CHECK (reserved_qty >= 0)",
		"CREATE INDEX IF NOT EXISTS idx_products_expiry_date",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentIntentsMigrationEnforcesOneLiveIntent(t *testing.T) {
	content := readMigration(t, "*_create_payment_intents.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_intents_gateway_order_id",
		"idx_payment_intents_one_live_per_order",
		"WHERE live AND order_id IS NOT NULL",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInvoicesMigrationContainsUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_invoices.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_invoice_number",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_payment_intent_id",
		"CREATE TABLE IF NOT EXISTS invoice_sequences",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
