package storage

import (
	"context"

	"rfm-segmenter/models"
)

// TransactionSource is the interface any ledger backend must satisfy.
// Load returns nil records when there is nothing to read.
type TransactionSource interface {
	Load(ctx context.Context) ([]*models.RawTransaction, error)
	Close() error
}

// ResultWriter is the interface for persisting scored customers and their
// clustering features.
type ResultWriter interface {
	WriteScored(rows []*models.ScoredRFM) error
	WriteFeatures(set *models.FeatureSet) error
	Close() error
}
