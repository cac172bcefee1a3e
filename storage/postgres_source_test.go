package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfm-segmenter/utils"
)

func TestSelectLedgerQuery(t *testing.T) {
	q := selectLedgerQuery("transactions")

	assert.True(t, strings.HasPrefix(q, "SELECT COALESCE(transaction_id::text, '') AS transaction_id, "))
	assert.True(t, strings.HasSuffix(q, " FROM transactions ORDER BY ctid"))
	for _, col := range ledgerColumns {
		assert.Contains(t, q, "COALESCE("+col+"::text, '') AS "+col)
	}
	assert.Equal(t, len(ledgerColumns)-1, strings.Count(q, "), COALESCE("))
}

func TestNewPostgresSourceUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dsn := "host=127.0.0.1 port=1 user=rfm password=rfm dbname=ledger sslmode=disable connect_timeout=1"
	src, err := NewPostgresSource(ctx, dsn, "transactions", utils.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   10 * time.Millisecond,
		Logger:      utils.Discard(),
	})
	require.Error(t, err)
	assert.Nil(t, src)
	assert.Contains(t, err.Error(), "postgres ping")
}
