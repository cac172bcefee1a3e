package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfm-segmenter/config"
	"rfm-segmenter/models"
)

func ledger() []*models.RawTransaction {
	nullBalance := rawTxn("T5", "C2", "2016-08-06", "75")
	nullBalance.AccountBalance = ""
	return []*models.RawTransaction{
		rawTxn("T1", "C1", "2016-08-01", "100"),
		rawTxn("T2", "C1", "2016-08-05", "200"),
		rawTxn("T2", "C1", "2016-08-05", "200"),
		rawTxn("T3", "C1", "2016-08-10", "300"),
		rawTxn("T4", "C2", "2016-08-10", "50"),
		nullBalance,
	}
}

func TestPipelineRun(t *testing.T) {
	p := NewPipeline(newTestLogger(), nil, PipelineOptions{})

	res, err := p.Run(context.Background(), ledger())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, models.CleanStats{
		Input:             6,
		FullRowDuplicates: 1,
		TransactionIDDups: 1,
		DroppedMissing:    1,
		Output:            4,
		UniqueCustomers:   2,
	}, res.Clean)
	assert.True(t, res.ReferenceDate.Equal(baseDay.AddDate(0, 0, 10)))

	require.Len(t, res.Customers, 2)
	c1, c2 := res.Customers[0], res.Customers[1]
	assert.Equal(t, "C1", c1.CustomerID)
	assert.Equal(t, 1, c1.Recency)
	assert.Equal(t, 3, c1.Frequency)
	assert.Equal(t, 600.0, c1.Monetary)
	assert.Equal(t, "C2", c2.CustomerID)
	assert.Equal(t, 1, c2.Recency)
	assert.Equal(t, 1, c2.Frequency)
	assert.Equal(t, 50.0, c2.Monetary)

	require.Len(t, res.Scored, 2)
	// Same recency, C1 ahead on frequency and spend
	assert.Equal(t, "555", res.Scored[0].RFMGroup)
	assert.Equal(t, "Champions", res.Scored[0].Segment)
	assert.Equal(t, "511", res.Scored[1].RFMGroup)
	assert.Equal(t, "New Customers", res.Scored[1].Segment)

	require.NotNil(t, res.Features)
	require.Len(t, res.Features.Rows, 2)
	assert.Equal(t, "C1", res.Features.Rows[0].CustomerID)
	assert.Equal(t, "C2", res.Features.Rows[1].CustomerID)
	assert.InDelta(t, 1, res.Features.Rows[0].Monetary, 1e-9)
	assert.InDelta(t, -1, res.Features.Rows[1].Monetary, 1e-9)
	assert.Zero(t, res.Features.Rows[0].Recency)
}

func TestPipelineNilInput(t *testing.T) {
	p := NewPipeline(newTestLogger(), nil, PipelineOptions{})

	res, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Nil(t, res.Customers)
	assert.Nil(t, res.Scored)
	assert.Nil(t, res.Features)
}

func TestPipelineAllRowsInvalid(t *testing.T) {
	bad := rawTxn("T1", "C1", "never", "1")
	p := NewPipeline(newTestLogger(), nil, PipelineOptions{})

	res, err := p.Run(context.Background(), []*models.RawTransaction{bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyLedger)
	assert.Contains(t, err.Error(), ": aggregate: ")
	assert.Nil(t, res)
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewPipeline(newTestLogger(), nil, PipelineOptions{}).Run(ctx, ledger())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestPipelineRejectsNegativeMonetary(t *testing.T) {
	raw := append(ledger(), rawTxn("T9", "C3", "2016-08-03", "-10"))
	p := NewPipeline(newTestLogger(), nil, PipelineOptions{NegativeMonetary: config.NegativeReject})

	_, err := p.Run(context.Background(), raw)
	assert.ErrorIs(t, err, ErrNegativeMonetary)
}

func TestPipelineMetricsTextfile(t *testing.T) {
	m := NewMetrics()
	p := NewPipeline(newTestLogger(), m, PipelineOptions{})
	require.Same(t, m, p.Metrics())

	_, err := p.Run(context.Background(), ledger())
	require.NoError(t, err)

	assert.Equal(t, 6.0, testutil.ToFloat64(m.RawRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Customers))
	assert.Equal(t, 4, testutil.CollectAndCount(m.StageSeconds))

	path := filepath.Join(t.TempDir(), "rfm.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rfm_cleaner_raw_rows_total 6")
	assert.Contains(t, string(data), `rfm_pipeline_stage_seconds{stage="score"}`)
}
