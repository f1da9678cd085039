// Package store provides read access to the bakery ERP database.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Customer is a row of the customers listing.
type Customer struct {
	PK    int64  `db:"customer_pk" json:"customer_pk"`
	Name  string `db:"customer_name" json:"customer_name"`
	Group string `db:"customer_group" json:"customer_group"`
}

// Invoice is an invoice summary. Values are rendered as text.
type Invoice struct {
	Number string `db:"invoice_number" json:"invoice_number"`
	Date   string `db:"invoice_date" json:"invoice_date"`
	Total  string `db:"total_amount" json:"total_amount"`
	Status string `db:"status" json:"status"`
}

// InvoiceItem is a single invoice line. Values are rendered as text.
type InvoiceItem struct {
	ItemNumber    string `db:"item_number" json:"item_number"`
	Description   string `db:"description" json:"description"`
	Quantity      string `db:"quantity" json:"quantity"`
	UnitOfMeasure string `db:"unit_of_measure" json:"unit_of_measure"`
	UnitPrice     string `db:"unit_price" json:"unit_price"`
	Total         string `db:"item_total_amount" json:"item_total_amount"`
}

const (
	listCustomersSQL = `
		SELECT customer_pk::bigint AS customer_pk,
		       customer_name,
		       COALESCE(customer_group, '') AS customer_group
		FROM customers
		ORDER BY customer_pk`

	customerExistsSQL = `SELECT EXISTS (SELECT 1 FROM customers WHERE customer_pk::text = $1)`

	recentInvoicesSQL = `
		SELECT inv.invoice_number AS invoice_number,
		       inv.invoice_date::text AS invoice_date,
		       inv.total_amount::text AS total_amount,
		       COALESCE(inv.status, '') AS status
		FROM invoices inv
		JOIN customers cust ON inv.customer_fk = cust.customer_pk
		WHERE cust.customer_pk::text = $1
		ORDER BY inv.invoice_date DESC
		LIMIT $2`

	invoiceItemsSQL = `
		SELECT ii.item_number::text AS item_number,
		       COALESCE(ii.description, '') AS description,
		       ii.quantity::text AS quantity,
		       COALESCE(ii.unit_of_measure, '') AS unit_of_measure,
		       ii.unit_price::text AS unit_price,
		       ii.item_total_amount::text AS item_total_amount
		FROM invoice_items ii
		JOIN invoices inv ON ii.invoice_fk = inv.invoice_pk
		WHERE inv.customer_fk::text = $1 AND inv.invoice_number = $2
		ORDER BY ii.item_number`
)

// Postgres is the pgx-backed store. Every query is bounded by queryTimeout.
type Postgres struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, url string, queryTimeout time.Duration) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p := &Postgres{pool: pool, queryTimeout: queryTimeout}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.queryTimeout)
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// ListCustomers returns all customers ordered by primary key.
func (p *Postgres) ListCustomers(ctx context.Context) ([]Customer, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, listCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	customers, err := pgx.CollectRows(rows, pgx.RowToStructByName[Customer])
	if err != nil {
		return nil, fmt.Errorf("scan customers: %w", err)
	}
	return customers, nil
}

// CustomerExists reports whether a customer with the given key exists.
func (p *Postgres) CustomerExists(ctx context.Context, customerNumber string) (bool, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	var exists bool
	if err := p.pool.QueryRow(ctx, customerExistsSQL, customerNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("verify customer: %w", err)
	}
	return exists, nil
}

// RecentInvoices returns up to limit invoices for the customer, newest first.
func (p *Postgres) RecentInvoices(ctx context.Context, customerNumber string, limit int) ([]Invoice, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, recentInvoicesSQL, customerNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	invoices, err := pgx.CollectRows(rows, pgx.RowToStructByName[Invoice])
	if err != nil {
		return nil, fmt.Errorf("scan invoices: %w", err)
	}
	return invoices, nil
}

// InvoiceItems returns the lines of one of the customer's invoices.
// An invoice that belongs to another customer yields no rows.
func (p *Postgres) InvoiceItems(ctx context.Context, customerNumber, invoiceNumber string) ([]InvoiceItem, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, invoiceItemsSQL, customerNumber, invoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("query invoice items: %w", err)
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[InvoiceItem])
	if err != nil {
		return nil, fmt.Errorf("scan invoice items: %w", err)
	}
	return items, nil
}
