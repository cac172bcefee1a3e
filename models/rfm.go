package models

import "time"

// CustomerRFM is one customer's Recency/Frequency/Monetary metrics plus the
// descriptive attributes carried along from their transactions.
type CustomerRFM struct {
	CustomerID string
	Recency    int
	Frequency  int
	Monetary   float64

	// Taken from the customer's chronologically first transaction.
	CustomerDOB string
	Gender      string
	Location    string
	// Taken from the customer's chronologically last transaction.
	AccountBalance float64
}

// ScoredRFM extends CustomerRFM with quintile scores and the segment label.
type ScoredRFM struct {
	CustomerRFM

	RScore   int
	FScore   int
	MScore   int
	RFMScore int
	RFMGroup string
	Segment  string
}

// FeatureRow is the clustering input for a single customer.
type FeatureRow struct {
	CustomerID string
	Recency    float64
	Frequency  float64
	Monetary   float64
}

// ScalerParams are the standardization parameters fitted on one batch,
// in Recency, Frequency, Monetary order.
type ScalerParams struct {
	Mean  [3]float64
	Scale [3]float64
}

// FeatureSet is a scaled feature matrix together with the parameters that
// produced it. Rows follow the order of the scored input.
type FeatureSet struct {
	Rows    []FeatureRow
	Scaler  ScalerParams
	Clamped int
}

// FeatureColumns is the fixed column order of a FeatureSet.
var FeatureColumns = []string{"Recency", "Frequency", "Monetary"}

// PipelineResult bundles the output of every stage of one pipeline run.
type PipelineResult struct {
	RunID         string
	ReferenceDate time.Time
	Clean         CleanStats
	Customers     []*CustomerRFM
	Scored        []*ScoredRFM
	Score         ScoreStats
	Features      *FeatureSet
	Duration      time.Duration
}

// CleanStats summarises what the cleaner saw and dropped.
type CleanStats struct {
	Input             int
	FullRowDuplicates int
	TransactionIDDups int
	DroppedMissing    int
	Output            int
	UniqueCustomers   int
}

// ScoreStats describes one scoring pass.
type ScoreStats struct {
	MeanRFMScore float64
	// DistinctEdges holds, per metric name, how many distinct quintile edges
	// were found. Six means a full partition.
	DistinctEdges map[string]int
}

// Degraded reports whether any metric had colliding quintile edges.
func (s ScoreStats) Degraded() bool {
	for _, n := range s.DistinctEdges {
		if n < 6 {
			return true
		}
	}
	return false
}
