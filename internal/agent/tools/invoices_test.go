package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bakeassist/bakeassist/internal/agent"
	"github.com/bakeassist/bakeassist/internal/store"
)

type fakeSource struct {
	invoices  []store.Invoice
	items     []store.InvoiceItem
	err       error
	customer  string
	limit     int
	invoiceNo string
}

func (f *fakeSource) RecentInvoices(_ context.Context, customer string, limit int) ([]store.Invoice, error) {
	f.customer, f.limit = customer, limit
	return f.invoices, f.err
}

func (f *fakeSource) InvoiceItems(_ context.Context, customer, invoice string) ([]store.InvoiceItem, error) {
	f.customer, f.invoiceNo = customer, invoice
	return f.items, f.err
}

func newDispatcher(t *testing.T, src InvoiceSource) *agent.Dispatcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg, err := agent.NewToolRegistry(Builtin(src, logger)...)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return agent.NewDispatcher(reg, time.Second, logger)
}

func TestBuiltinToolsAreDescribed(t *testing.T) {
	specs := Builtin(&fakeSource{}, slog.Default())
	if len(specs) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(specs))
	}
	for _, spec := range specs {
		if spec.Description == "" {
			t.Fatalf("tool %s has no description", spec.Name)
		}
		if !strings.Contains(spec.Parameters, `"customer_number"`) {
			t.Fatalf("tool %s schema lacks customer_number: %s", spec.Name, spec.Parameters)
		}
	}
}

func TestCustomerInvoicesReturnsRows(t *testing.T) {
	src := &fakeSource{invoices: []store.Invoice{
		{Number: "INV-2024-0007", Date: "2024-03-01", Total: "118.40", Status: "paid"},
	}}
	d := newDispatcher(t, src)

	res := d.Execute(context.Background(), agent.FunctionCall{
		Name:      "get_customer_invoices",
		Arguments: map[string]any{"customer_number": "99", "limit": float64(3)},
	}, "2")
	if res.Status != agent.ToolStatusOK {
		t.Fatalf("expected ok, got %s (%v)", res.Status, res.Err)
	}
	if src.customer != "2" || src.limit != 3 {
		t.Fatalf("expected query for customer 2 limit 3, got %s/%d", src.customer, src.limit)
	}
	var rows []store.Invoice
	if err := json.Unmarshal([]byte(res.Payload), &rows); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(rows) != 1 || rows[0].Number != "INV-2024-0007" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestCustomerInvoicesDefaultsLimit(t *testing.T) {
	src := &fakeSource{}
	d := newDispatcher(t, src)
	d.Execute(context.Background(), agent.FunctionCall{Name: "get_customer_invoices", Arguments: map[string]any{}}, "2")
	if src.limit != 5 {
		t.Fatalf("expected default limit 5, got %d", src.limit)
	}
}

func TestCustomerInvoicesEmptyAndFailure(t *testing.T) {
	d := newDispatcher(t, &fakeSource{})
	res := d.Execute(context.Background(), agent.FunctionCall{Name: "get_customer_invoices", Arguments: map[string]any{}}, "2")
	if res.Payload != `{"message":"No invoices found for customer 2."}` {
		t.Fatalf("unexpected empty payload %s", res.Payload)
	}

	d = newDispatcher(t, &fakeSource{err: errors.New("connection reset")})
	res = d.Execute(context.Background(), agent.FunctionCall{Name: "get_customer_invoices", Arguments: map[string]any{}}, "2")
	if res.Status != agent.ToolStatusOK {
		t.Fatalf("database errors are reported in the payload, got status %s", res.Status)
	}
	if res.Payload != `{"error":"Database error while fetching invoices."}` {
		t.Fatalf("unexpected error payload %s", res.Payload)
	}
}

func TestCustomerInvoicesRejectsBadLimit(t *testing.T) {
	src := &fakeSource{}
	d := newDispatcher(t, src)
	res := d.Execute(context.Background(), agent.FunctionCall{
		Name:      "get_customer_invoices",
		Arguments: map[string]any{"limit": float64(0)},
	}, "2")
	if res.Status != agent.ToolStatusInvalidArguments {
		t.Fatalf("expected invalid_arguments, got %s", res.Status)
	}
	if src.customer != "" {
		t.Fatal("store must not be queried with invalid arguments")
	}
}

func TestInvoiceDetails(t *testing.T) {
	src := &fakeSource{items: []store.InvoiceItem{
		{ItemNumber: "1", Description: "Sourdough loaf", Quantity: "12", UnitOfMeasure: "pcs", UnitPrice: "3.20", Total: "38.40"},
	}}
	d := newDispatcher(t, src)

	res := d.Execute(context.Background(), agent.FunctionCall{
		Name:      "get_invoice_details",
		Arguments: map[string]any{"invoice_number": "INV-2024-0007"},
	}, "2")
	if res.Status != agent.ToolStatusOK {
		t.Fatalf("expected ok, got %s (%v)", res.Status, res.Err)
	}
	if src.customer != "2" || src.invoiceNo != "INV-2024-0007" {
		t.Fatalf("unexpected query %s/%s", src.customer, src.invoiceNo)
	}
	if !strings.Contains(res.Payload, "Sourdough loaf") {
		t.Fatalf("expected item in payload, got %s", res.Payload)
	}

	res = d.Execute(context.Background(), agent.FunctionCall{Name: "get_invoice_details", Arguments: map[string]any{}}, "2")
	if res.Status != agent.ToolStatusInvalidArguments {
		t.Fatalf("expected invalid_arguments without invoice_number, got %s", res.Status)
	}
}
