package models

import (
	"strconv"
	"time"
)

// RawTransaction holds one ledger row exactly as it was read from the source.
// Every field is kept as text; an empty (or whitespace-only) field is missing.
type RawTransaction struct {
	TransactionID   string
	CustomerID      string
	TransactionDate string
	Amount          string
	CustomerDOB     string
	Gender          string
	Location        string
	AccountBalance  string

	// Extra holds the values of any other ledger columns in file order. They
	// only take part in full-row duplicate detection.
	Extra []string
}

// Fields returns the row's values in column order.
func (r *RawTransaction) Fields() []string {
	return []string{
		r.TransactionID,
		r.CustomerID,
		r.TransactionDate,
		r.Amount,
		r.CustomerDOB,
		r.Gender,
		r.Location,
		r.AccountBalance,
	}
}

// Transaction is a cleaned ledger row: unique id, no missing field and a
// parsed transaction date.
type Transaction struct {
	TransactionID   string
	CustomerID      string
	TransactionDate time.Time
	Amount          float64
	CustomerDOB     string
	Gender          string
	Location        string
	AccountBalance  float64
}

// Raw renders a cleaned transaction back into ledger text. Dates use RFC 3339.
func (t *Transaction) Raw() *RawTransaction {
	return &RawTransaction{
		TransactionID:   t.TransactionID,
		CustomerID:      t.CustomerID,
		TransactionDate: t.TransactionDate.Format(time.RFC3339Nano),
		Amount:          strconv.FormatFloat(t.Amount, 'f', -1, 64),
		CustomerDOB:     t.CustomerDOB,
		Gender:          t.Gender,
		Location:        t.Location,
		AccountBalance:  strconv.FormatFloat(t.AccountBalance, 'f', -1, 64),
	}
}
