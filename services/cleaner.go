package services

import (
	"math"
	"strconv"
	"strings"
	"time"

	"rfm-segmenter/models"
	"rfm-segmenter/utils"
)

// Cleaner transforms RawTransactions into clean, validated Transactions.
type Cleaner struct {
	logger  *utils.Logger
	metrics *Metrics
	layouts []string
}

// NewCleaner creates a Cleaner that parses transaction dates with the given
// layouts, tried in order.
func NewCleaner(logger *utils.Logger, metrics *Metrics, layouts []string) *Cleaner {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Cleaner{logger: logger, metrics: metrics, layouts: layouts}
}

// Clean deduplicates raw rows by transaction id (first occurrence wins),
// then drops every row with a missing or unparsable field.
//
// A nil input means no data was fetched; Clean returns nil. Any other input,
// including an empty one, yields a non-nil slice.
func (c *Cleaner) Clean(raw []*models.RawTransaction) ([]*models.Transaction, models.CleanStats) {
	if raw == nil {
		c.logger.Warn("[cleaner] No data available. Please fetch data first.")
		return nil, models.CleanStats{}
	}

	stats := models.CleanStats{Input: len(raw)}
	c.logger.Info("[cleaner] Starting data processing on %d rows", len(raw))

	rows := make([]*models.RawTransaction, 0, len(raw))
	seenRows := make(map[string]struct{}, len(raw))
	seenIDs := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		if r == nil {
			continue
		}
		key := strings.Join(append(r.Fields(), r.Extra...), "\x1f")
		if _, dup := seenRows[key]; dup {
			stats.FullRowDuplicates++
		}
		seenRows[key] = struct{}{}

		if _, dup := seenIDs[r.TransactionID]; dup {
			stats.TransactionIDDups++
			c.logger.Debug("[cleaner] Duplicate transaction id skipped: %s", r.TransactionID)
			continue
		}
		seenIDs[r.TransactionID] = struct{}{}
		rows = append(rows, r)
	}

	c.logger.Info("[cleaner] Full-row duplicates: %d", stats.FullRowDuplicates)
	c.logger.Info("[cleaner] Transaction id duplicates: %d", stats.TransactionIDDups)

	result := make([]*models.Transaction, 0, len(rows))
	customers := make(map[string]struct{})

	for _, r := range rows {
		txn, ok := c.parse(r)
		if !ok {
			stats.DroppedMissing++
			continue
		}
		customers[txn.CustomerID] = struct{}{}
		result = append(result, txn)
	}

	stats.Output = len(result)
	stats.UniqueCustomers = len(customers)

	c.metrics.RawRows.Add(float64(stats.Input))
	c.metrics.FullRowDuplicates.Add(float64(stats.FullRowDuplicates))
	c.metrics.TransactionIDDuplicates.Add(float64(stats.TransactionIDDups))
	c.metrics.DroppedRows.Add(float64(stats.DroppedMissing))
	c.metrics.CleanRows.Add(float64(stats.Output))

	c.logger.Info("[cleaner] Unique customers: %d", stats.UniqueCustomers)
	c.logger.Info("[cleaner] Cleaned %d → %d transactions (dropped %d)",
		stats.Input, stats.Output, stats.Input-stats.Output)
	return result, stats
}

// parse converts one raw row. It reports false when any field is missing or
// when the date or a numeric field cannot be parsed.
func (c *Cleaner) parse(r *models.RawTransaction) (*models.Transaction, bool) {
	for _, f := range r.Fields() {
		if strings.TrimSpace(f) == "" {
			c.logger.Debug("[cleaner] Dropping transaction %q with a missing field", r.TransactionID)
			return nil, false
		}
	}

	date, ok := c.parseDate(r.TransactionDate)
	if !ok {
		c.logger.Debug("[cleaner] Dropping transaction %q: unparsable date %q", r.TransactionID, r.TransactionDate)
		return nil, false
	}
	amount, ok := parseAmount(r.Amount)
	if !ok {
		c.logger.Debug("[cleaner] Dropping transaction %q: unparsable amount %q", r.TransactionID, r.Amount)
		return nil, false
	}
	balance, ok := parseAmount(r.AccountBalance)
	if !ok {
		c.logger.Debug("[cleaner] Dropping transaction %q: unparsable balance %q", r.TransactionID, r.AccountBalance)
		return nil, false
	}

	return &models.Transaction{
		TransactionID:   r.TransactionID,
		CustomerID:      r.CustomerID,
		TransactionDate: date,
		Amount:          amount,
		CustomerDOB:     r.CustomerDOB,
		Gender:          r.Gender,
		Location:        r.Location,
		AccountBalance:  balance,
	}, true
}

// parseDate tries the configured layouts, then RFC 3339 so that already
// cleaned data always round-trips.
func (c *Cleaner) parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range c.layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func parseAmount(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
