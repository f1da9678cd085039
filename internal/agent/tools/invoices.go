// Package tools contains the database-backed tools offered to the model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bakeassist/bakeassist/internal/agent"
	"github.com/bakeassist/bakeassist/internal/store"
)

// InvoiceSource is the read side of the bakery database used by the tools.
type InvoiceSource interface {
	RecentInvoices(ctx context.Context, customerNumber string, limit int) ([]store.Invoice, error)
	InvoiceItems(ctx context.Context, customerNumber, invoiceNumber string) ([]store.InvoiceItem, error)
}

// Builtin returns every tool backed by src.
func Builtin(src InvoiceSource, logger *slog.Logger) []agent.ToolSpec {
	logger = logger.With("component", "tools")
	return []agent.ToolSpec{
		customerInvoicesTool(src, logger),
		invoiceDetailsTool(src, logger),
	}
}

// CustomerInvoicesInput is the argument schema of get_customer_invoices.
type CustomerInvoicesInput struct {
	CustomerNumber string `json:"customer_number" validate:"required" jsonschema:"description=The customer's identifier from the current context"`
	Limit          int    `json:"limit,omitempty" validate:"min=1,max=50" jsonschema:"description=Maximum number of invoices to return,default=5,minimum=1,maximum=50"`
}

const customerInvoicesDescription = "Retrieves the most recent invoices for the current customer, newest first. " +
	"Each invoice has its number, date, total amount and status. " +
	"Arguments: customer_number (string, the customer from the context) and limit (integer, optional, defaults to 5)."

func customerInvoicesTool(src InvoiceSource, logger *slog.Logger) agent.ToolSpec {
	return agent.NewTool("get_customer_invoices", customerInvoicesDescription,
		CustomerInvoicesInput{Limit: 5},
		func(ctx context.Context, in CustomerInvoicesInput) (json.RawMessage, error) {
			logger.Info("tool call", "tool", "get_customer_invoices", "customer", in.CustomerNumber, "limit", in.Limit)

			invoices, err := src.RecentInvoices(ctx, in.CustomerNumber, in.Limit)
			if err != nil {
				logger.Error("fetch invoices failed", "customer", in.CustomerNumber, "error", err)
				return payload(map[string]string{"error": "Database error while fetching invoices."})
			}
			if len(invoices) == 0 {
				return payload(map[string]string{"message": fmt.Sprintf("No invoices found for customer %s.", in.CustomerNumber)})
			}
			return payload(invoices)
		})
}

// InvoiceDetailsInput is the argument schema of get_invoice_details.
type InvoiceDetailsInput struct {
	CustomerNumber string `json:"customer_number" validate:"required" jsonschema:"description=The customer's identifier from the current context"`
	InvoiceNumber  string `json:"invoice_number" validate:"required" jsonschema:"description=The invoice number as shown in the invoice list"`
}

const invoiceDetailsDescription = "Retrieves the line items of one of the current customer's invoices: " +
	"item number, description, quantity, unit of measure, unit price and line total. " +
	"Arguments: customer_number (string, the customer from the context) and invoice_number (string)."

func invoiceDetailsTool(src InvoiceSource, logger *slog.Logger) agent.ToolSpec {
	return agent.NewTool("get_invoice_details", invoiceDetailsDescription,
		InvoiceDetailsInput{},
		func(ctx context.Context, in InvoiceDetailsInput) (json.RawMessage, error) {
			logger.Info("tool call", "tool", "get_invoice_details", "customer", in.CustomerNumber, "invoice", in.InvoiceNumber)

			items, err := src.InvoiceItems(ctx, in.CustomerNumber, in.InvoiceNumber)
			if err != nil {
				logger.Error("fetch invoice items failed", "customer", in.CustomerNumber, "invoice", in.InvoiceNumber, "error", err)
				return payload(map[string]string{"error": "Database error while fetching invoice details."})
			}
			if len(items) == 0 {
				return payload(map[string]string{"message": fmt.Sprintf("No invoice %s found for customer %s.", in.InvoiceNumber, in.CustomerNumber)})
			}
			return payload(items)
		})
}

func payload(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool payload: %w", err)
	}
	return b, nil
}
