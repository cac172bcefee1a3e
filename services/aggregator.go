package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"rfm-segmenter/models"
	"rfm-segmenter/utils"
)

const day = 24 * time.Hour

// ErrEmptyLedger is returned when a reference date is requested over zero
// transactions.
var ErrEmptyLedger = errors.New("no transactions to compute a reference date from")

// ReferenceDate returns one day after the latest transaction date.
func ReferenceDate(txns []*models.Transaction) (time.Time, error) {
	if len(txns) == 0 {
		return time.Time{}, ErrEmptyLedger
	}
	latest := txns[0].TransactionDate
	for _, t := range txns[1:] {
		if t.TransactionDate.After(latest) {
			latest = t.TransactionDate
		}
	}
	return latest.Add(day), nil
}

// Aggregator groups cleaned transactions into one RFM row per customer.
type Aggregator struct {
	logger  *utils.Logger
	metrics *Metrics
}

func NewAggregator(logger *utils.Logger, metrics *Metrics) *Aggregator {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Aggregator{logger: logger, metrics: metrics}
}

// Aggregate computes Recency, Frequency and Monetary for every customer and
// attaches their demographics. Rows are sorted by customer id.
//
// A nil input returns nil without error; an empty, non-nil input returns
// ErrEmptyLedger.
func (a *Aggregator) Aggregate(txns []*models.Transaction) ([]*models.CustomerRFM, error) {
	if txns == nil {
		a.logger.Warn("[aggregator] No data available. Please fetch and process data first.")
		return nil, nil
	}

	ref, err := ReferenceDate(txns)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return a.AggregateAt(txns, ref), nil
}

// AggregateAt is Aggregate with Recency measured against ref. txns must be
// non-empty.
func (a *Aggregator) AggregateAt(txns []*models.Transaction, ref time.Time) []*models.CustomerRFM {
	a.logger.Info("[aggregator] Reference date: %s", ref.Format(time.RFC3339))

	groups := make(map[string][]*models.Transaction)
	for _, t := range txns {
		groups[t.CustomerID] = append(groups[t.CustomerID], t)
	}

	rows := make([]*models.CustomerRFM, 0, len(groups))
	for id, group := range groups {
		rows = append(rows, summarise(id, group, ref))
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CustomerID < rows[j].CustomerID
	})

	a.metrics.Customers.Set(float64(len(rows)))
	a.logger.Info("[aggregator] Aggregated %d transactions into %d customers", len(txns), len(rows))
	return rows
}

// summarise builds the RFM row of one customer. Demographics come from the
// chronologically first record, the balance from the last; equal timestamps
// keep input order.
func summarise(id string, group []*models.Transaction, ref time.Time) *models.CustomerRFM {
	ordered := make([]*models.Transaction, len(group))
	copy(ordered, group)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TransactionDate.Before(ordered[j].TransactionDate)
	})

	first := ordered[0]
	last := ordered[len(ordered)-1]

	var monetary float64
	for _, t := range ordered {
		monetary += t.Amount
	}

	return &models.CustomerRFM{
		CustomerID:     id,
		Recency:        int(ref.Sub(last.TransactionDate) / day),
		Frequency:      len(ordered),
		Monetary:       monetary,
		CustomerDOB:    first.CustomerDOB,
		Gender:         first.Gender,
		Location:       first.Location,
		AccountBalance: last.AccountBalance,
	}
}
