package store

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"
)

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://postgres@localhost:99999/bakery", time.Second)
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

// Runs against a live database when BAKEASSIST_TEST_DATABASE_URL is set.
func TestPostgresIntegration(t *testing.T) {
	url := os.Getenv("BAKEASSIST_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BAKEASSIST_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, url, 5*time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	customers, err := db.ListCustomers(ctx)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}

	ok, err := db.CustomerExists(ctx, "-1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("customer -1 should not exist")
	}
	if len(customers) == 0 {
		return
	}

	id := customers[0].PK
	ok, err = db.CustomerExists(ctx, itoa(id))
	if err != nil || !ok {
		t.Fatalf("expected customer %d to exist: %v", id, err)
	}
	invoices, err := db.RecentInvoices(ctx, itoa(id), 3)
	if err != nil {
		t.Fatalf("invoices: %v", err)
	}
	if len(invoices) > 3 {
		t.Fatalf("limit not applied: %d", len(invoices))
	}
	for i := 1; i < len(invoices); i++ {
		if invoices[i-1].Date < invoices[i].Date {
			t.Fatalf("invoices not newest first: %s before %s", invoices[i-1].Date, invoices[i].Date)
		}
	}
	if len(invoices) > 0 {
		if _, err := db.InvoiceItems(ctx, itoa(id), invoices[0].Number); err != nil {
			t.Fatalf("items: %v", err)
		}
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
