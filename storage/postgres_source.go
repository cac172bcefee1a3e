package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"rfm-segmenter/models"
	"rfm-segmenter/utils"
)

// ledgerColumns are the table columns read by PostgresSource, in
// RawTransaction field order.
var ledgerColumns = []string{
	"transaction_id",
	"customer_id",
	"transaction_date",
	"transaction_amount",
	"customer_dob",
	"cust_gender",
	"cust_location",
	"cust_account_balance",
}

// ledgerRow mirrors one selected row. Every column is cast to text so that
// the cleaner applies the same parsing rules as for CSV input.
type ledgerRow struct {
	TransactionID   string `db:"transaction_id"`
	CustomerID      string `db:"customer_id"`
	TransactionDate string `db:"transaction_date"`
	Amount          string `db:"transaction_amount"`
	CustomerDOB     string `db:"customer_dob"`
	Gender          string `db:"cust_gender"`
	Location        string `db:"cust_location"`
	AccountBalance  string `db:"cust_account_balance"`
}

// PostgresSource reads the transaction ledger from a PostgreSQL table. It
// never writes.
type PostgresSource struct {
	db    *sqlx.DB
	table string
}

// NewPostgresSource opens a connection and waits for the server using the
// retry policy.
func NewPostgresSource(ctx context.Context, dsn, table string, retry utils.RetryConfig) (*PostgresSource, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if retry.BaseDelay == 0 {
		retry.BaseDelay = 2 * time.Second
	}
	if err := retry.Do(ctx, "postgres ping", func() error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &PostgresSource{db: db, table: table}, nil
}

// Load selects the whole ledger in physical order. NULLs arrive as empty
// strings, which the cleaner treats as missing.
func (p *PostgresSource) Load(ctx context.Context) ([]*models.RawTransaction, error) {
	var rows []ledgerRow
	if err := p.db.SelectContext(ctx, &rows, selectLedgerQuery(p.table)); err != nil {
		return nil, fmt.Errorf("postgres: load %s: %w", p.table, err)
	}

	out := make([]*models.RawTransaction, len(rows))
	for i, r := range rows {
		out[i] = &models.RawTransaction{
			TransactionID:   r.TransactionID,
			CustomerID:      r.CustomerID,
			TransactionDate: r.TransactionDate,
			Amount:          r.Amount,
			CustomerDOB:     r.CustomerDOB,
			Gender:          r.Gender,
			Location:        r.Location,
			AccountBalance:  r.AccountBalance,
		}
	}
	return out, nil
}

func (p *PostgresSource) Close() error {
	return p.db.Close()
}

// selectLedgerQuery builds the SELECT for table. The table name is validated
// as a plain identifier by config before it gets here.
func selectLedgerQuery(table string) string {
	q := "SELECT "
	for i, col := range ledgerColumns {
		if i > 0 {
			q += ", "
		}
		q += fmt.Sprintf("COALESCE(%s::text, '') AS %s", col, col)
	}
	return q + fmt.Sprintf(" FROM %s ORDER BY ctid", table)
}
