package services

import (
	"errors"
	"fmt"
	"math"

	"rfm-segmenter/config"
	"rfm-segmenter/models"
	"rfm-segmenter/utils"
)

// ErrNegativeMonetary is returned under the reject policy when a customer's
// Monetary total is below zero.
var ErrNegativeMonetary = errors.New("negative monetary value outside the log1p domain")

// minScale is ten machine epsilons; smaller relative deviations count as zero.
const minScale = 10 * 2.220446049250313e-16

// FeaturePreparer log-transforms and standardizes RFM metrics for
// clustering. It keeps no state between calls; the fitted parameters are
// returned with each FeatureSet.
type FeaturePreparer struct {
	logger         *utils.Logger
	metrics        *Metrics
	negativePolicy string
}

// NewFeaturePreparer creates a preparer with the given negative Monetary
// policy (config.NegativeClamp or config.NegativeReject).
func NewFeaturePreparer(logger *utils.Logger, metrics *Metrics, negativePolicy string) *FeaturePreparer {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if negativePolicy == "" {
		negativePolicy = config.NegativeClamp
	}
	return &FeaturePreparer{logger: logger, metrics: metrics, negativePolicy: negativePolicy}
}

// Prepare returns one feature row per input row, in input order, each
// carrying its customer id.
func (p *FeaturePreparer) Prepare(rows []*models.ScoredRFM) (*models.FeatureSet, error) {
	if rows == nil {
		p.logger.Warn("[features] No data is available for clustering preparation")
		return nil, nil
	}
	p.logger.Info("[features] Preparing RFM data for clustering")

	set := &models.FeatureSet{Rows: make([]models.FeatureRow, len(rows))}
	columns := [3][]float64{
		make([]float64, len(rows)),
		make([]float64, len(rows)),
		make([]float64, len(rows)),
	}

	for i, r := range rows {
		monetary := r.Monetary
		if monetary < 0 {
			if p.negativePolicy == config.NegativeReject {
				return nil, fmt.Errorf("prepare features: customer %s: %w (%v)", r.CustomerID, ErrNegativeMonetary, monetary)
			}
			monetary = 0
			set.Clamped++
		}
		columns[0][i] = math.Log1p(float64(r.Recency))
		columns[1][i] = math.Log1p(float64(r.Frequency))
		columns[2][i] = math.Log1p(monetary)
	}
	if set.Clamped > 0 {
		p.metrics.ClampedMonetary.Add(float64(set.Clamped))
		p.logger.Warn("[features] Clamped %d negative Monetary values to 0", set.Clamped)
	}

	for c := range columns {
		mean, scale := fitColumn(columns[c])
		set.Scaler.Mean[c] = mean
		set.Scaler.Scale[c] = scale
		for i := range columns[c] {
			columns[c][i] = (columns[c][i] - mean) / scale
		}
	}

	for i, r := range rows {
		set.Rows[i] = models.FeatureRow{
			CustomerID: r.CustomerID,
			Recency:    columns[0][i],
			Frequency:  columns[1][i],
			Monetary:   columns[2][i],
		}
	}

	p.logger.Info("[features] RFM data successfully scaled and transformed for %d customers", len(rows))
	return set, nil
}

// fitColumn returns the mean and population standard deviation of xs. A
// column whose values are all equal gets its first value as mean and scale 1,
// so it standardizes to exact zeros. A deviation that is only rounding noise
// relative to the mean is treated the same way.
func fitColumn(xs []float64) (mean, scale float64) {
	if len(xs) == 0 {
		return 0, 1
	}
	if isConstant(xs) {
		return xs[0], 1
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	scale = math.Sqrt(ss / float64(len(xs)))
	if scale < minScale*math.Max(1, math.Abs(mean)) {
		scale = 1
	}
	return mean, scale
}

func isConstant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
