package services

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfm-segmenter/config"
	"rfm-segmenter/models"
)

func newTestCleaner() *Cleaner {
	return NewCleaner(newTestLogger(), NewMetrics(), config.DefaultDateLayouts)
}

func TestCleanerNilInput(t *testing.T) {
	c := newTestCleaner()
	cleaned, stats := c.Clean(nil)
	assert.Nil(t, cleaned)
	assert.Equal(t, models.CleanStats{}, stats)
}

func TestCleanerEmptyInputStaysNonNil(t *testing.T) {
	c := newTestCleaner()
	cleaned, _ := c.Clean([]*models.RawTransaction{})
	require.NotNil(t, cleaned)
	assert.Empty(t, cleaned)
}

func TestCleanerKeepsFirstDuplicateID(t *testing.T) {
	c := newTestCleaner()
	raw := []*models.RawTransaction{
		rawTxn("T1", "C1", "2016-08-02", "100"),
		rawTxn("T1", "C1", "2016-08-02", "999"),
		rawTxn("T2", "C2", "2016-08-03", "50"),
	}

	cleaned, stats := c.Clean(raw)
	require.Len(t, cleaned, 2)
	assert.Equal(t, "T1", cleaned[0].TransactionID)
	assert.Equal(t, 100.0, cleaned[0].Amount)
	assert.Equal(t, "T2", cleaned[1].TransactionID)
	assert.Equal(t, 1, stats.TransactionIDDups)
	assert.Equal(t, 0, stats.FullRowDuplicates)
}

func TestCleanerCountsDuplicates(t *testing.T) {
	m := NewMetrics()
	c := NewCleaner(newTestLogger(), m, config.DefaultDateLayouts)
	raw := []*models.RawTransaction{
		rawTxn("T1", "C1", "2016-08-02", "100"),
		rawTxn("T1", "C1", "2016-08-02", "100"),
		rawTxn("T1", "C1", "2016-08-02", "250"),
		rawTxn("T2", "C1", "2016-08-02", "100"),
	}

	_, stats := c.Clean(raw)
	assert.Equal(t, 1, stats.FullRowDuplicates)
	assert.Equal(t, 2, stats.TransactionIDDups)
	assert.Equal(t, 2, stats.Output)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.RawRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FullRowDuplicates))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransactionIDDuplicates))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CleanRows))
}

func TestCleanerFullRowDuplicatesIncludeExtraColumns(t *testing.T) {
	m := NewMetrics()
	c := NewCleaner(newTestLogger(), m, config.DefaultDateLayouts)
	first := rawTxn("T1", "C1", "2016-08-02", "100")
	first.Extra = []string{"143207"}
	later := rawTxn("T1", "C1", "2016-08-02", "100")
	later.Extra = []string{"151010"}
	same := rawTxn("T1", "C1", "2016-08-02", "100")
	same.Extra = []string{"151010"}

	cleaned, stats := c.Clean([]*models.RawTransaction{first, later, same})
	require.Len(t, cleaned, 1)
	assert.Equal(t, 1, stats.FullRowDuplicates)
	assert.Equal(t, 2, stats.TransactionIDDups)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FullRowDuplicates))
}

func TestCleanerDropsRowWithMissingBalance(t *testing.T) {
	c := newTestCleaner()
	missing := rawTxn("T2", "C1", "2016-08-05", "200")
	missing.AccountBalance = ""
	raw := []*models.RawTransaction{
		rawTxn("T1", "C1", "2016-08-01", "100"),
		missing,
	}

	cleaned, stats := c.Clean(raw)
	require.Len(t, cleaned, 1)
	assert.Equal(t, "T1", cleaned[0].TransactionID)
	assert.Equal(t, 1, stats.DroppedMissing)
}

func TestCleanerDropsAnyMissingField(t *testing.T) {
	blank := []func(r *models.RawTransaction){
		func(r *models.RawTransaction) { r.CustomerID = "" },
		func(r *models.RawTransaction) { r.TransactionDate = "  " },
		func(r *models.RawTransaction) { r.Amount = "" },
		func(r *models.RawTransaction) { r.CustomerDOB = "" },
		func(r *models.RawTransaction) { r.Gender = "" },
		func(r *models.RawTransaction) { r.Location = "\t" },
		func(r *models.RawTransaction) { r.AccountBalance = "" },
	}

	for i, mutate := range blank {
		r := rawTxn("T1", "C1", "2016-08-01", "100")
		mutate(r)
		cleaned, _ := newTestCleaner().Clean([]*models.RawTransaction{r})
		assert.Empty(t, cleaned, "case %d", i)
	}
}

func TestCleanerDropsUnparsableValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.RawTransaction)
	}{
		{"date", func(r *models.RawTransaction) { r.TransactionDate = "not a date" }},
		{"amount", func(r *models.RawTransaction) { r.Amount = "12abc" }},
		{"nan amount", func(r *models.RawTransaction) { r.Amount = "NaN" }},
		{"inf balance", func(r *models.RawTransaction) { r.AccountBalance = "+Inf" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rawTxn("T1", "C1", "2016-08-01", "100")
			tt.mutate(r)
			cleaned, stats := newTestCleaner().Clean([]*models.RawTransaction{r})
			assert.Empty(t, cleaned)
			assert.Equal(t, 1, stats.DroppedMissing)
		})
	}
}

func TestCleanerParsesDateLayouts(t *testing.T) {
	c := newTestCleaner()
	raw := []*models.RawTransaction{
		rawTxn("T1", "C1", "2016-08-02", "1"),
		rawTxn("T2", "C1", "2016-08-02 14:30:00", "1"),
		rawTxn("T3", "C1", "2016-08-02T14:30:00+05:30", "1"),
		rawTxn("T4", "C1", "8/2/16", "1"),
		rawTxn("T5", "C1", "8/2/2016", "1"),
	}

	cleaned, _ := c.Clean(raw)
	require.Len(t, cleaned, 5)
	for _, txn := range cleaned {
		assert.Equal(t, 2016, txn.TransactionDate.Year(), txn.TransactionID)
		assert.Equal(t, 2, txn.TransactionDate.Day(), txn.TransactionID)
	}
}

func TestCleanerInvariants(t *testing.T) {
	raw := []*models.RawTransaction{
		rawTxn("T1", "C1", "2016-08-01", "100"),
		rawTxn("T2", "C2", "2016-08-02", "-20.5"),
		rawTxn("T1", "C3", "2016-08-03", "70"),
		rawTxn("T3", "", "2016-08-03", "70"),
		rawTxn("T4", "C2", "bad", "70"),
		rawTxn("T5", "C4", "2016-08-04", "5"),
	}

	cleaned, stats := newTestCleaner().Clean(raw)

	seen := map[string]bool{}
	for _, txn := range cleaned {
		assert.False(t, seen[txn.TransactionID], "duplicate id %s", txn.TransactionID)
		seen[txn.TransactionID] = true
		for _, f := range txn.Raw().Fields() {
			assert.NotEmpty(t, f)
		}
	}
	assert.Equal(t, 3, stats.Output)
	assert.Equal(t, 3, stats.UniqueCustomers)
}

func TestCleanerIsIdempotent(t *testing.T) {
	c := newTestCleaner()
	raw := []*models.RawTransaction{
		rawTxn("T1", "C1", "2016-08-01", "100.25"),
		rawTxn("T1", "C1", "2016-08-01", "5"),
		rawTxn("T2", "C2", "8/3/16", "-3"),
		rawTxn("T3", "C2", "", "1"),
	}

	first, _ := c.Clean(raw)

	again := make([]*models.RawTransaction, len(first))
	for i, txn := range first {
		again[i] = txn.Raw()
	}
	second, stats := c.Clean(again)

	require.Len(t, second, len(first))
	assert.Zero(t, stats.TransactionIDDups)
	assert.Zero(t, stats.DroppedMissing)
	for i := range first {
		assert.Equal(t, first[i].TransactionID, second[i].TransactionID)
		assert.Equal(t, first[i].CustomerID, second[i].CustomerID)
		assert.True(t, first[i].TransactionDate.Equal(second[i].TransactionDate))
		assert.Equal(t, first[i].Amount, second[i].Amount)
		assert.Equal(t, first[i].AccountBalance, second[i].AccountBalance)
		assert.Equal(t, first[i].Location, second[i].Location)
	}
}
