package models

import "time"

// RFMReport holds the summary printed at the end of a pipeline run.
type RFMReport struct {
	RunID         string
	ReferenceDate time.Time

	RawTransactions     int
	CleanTransactions   int
	DroppedTransactions int
	TotalCustomers      int

	MeanRFMScore    float64
	AverageMonetary float64
	MinRecency      int
	MaxRecency      int
	MaxFrequency    int

	TopCustomers       []*ScoredRFM
	CustomersBySegment map[string]int
	ScoreDistribution  map[int]int
	DegradedMetrics    []string
}
