package services

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"rfm-segmenter/config"
	"rfm-segmenter/models"
	"rfm-segmenter/utils"
)

const quintiles = 5

// ErrNoQuantileEdges is returned when a metric holds values that cannot be
// ordered (NaN or infinite).
var ErrNoQuantileEdges = errors.New("metric has no valid quantile edges")

// Scorer turns RFM metrics into 1–5 quintile scores and segment labels.
type Scorer struct {
	logger   *utils.Logger
	metrics  *Metrics
	segments *config.SegmentTable
}

// NewScorer creates a Scorer. A nil segment table selects the defaults.
func NewScorer(logger *utils.Logger, metrics *Metrics, segments *config.SegmentTable) *Scorer {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if segments == nil {
		segments = config.DefaultSegments()
	}
	return &Scorer{logger: logger, metrics: metrics, segments: segments}
}

// Score assigns R, F and M scores by quintile. Low recency scores high;
// high frequency and monetary score high.
//
// When ties leave fewer than six distinct edges the bins are not dropped:
// each value lands in the lowest bucket whose upper edge it does not exceed,
// and the collapse is reported in the returned stats.
func (s *Scorer) Score(rows []*models.CustomerRFM) ([]*models.ScoredRFM, models.ScoreStats, error) {
	stats := models.ScoreStats{DistinctEdges: map[string]int{}}
	if rows == nil {
		s.logger.Warn("[scorer] No RFM data available for scoring")
		return nil, stats, nil
	}
	s.logger.Info("[scorer] Calculating RFM scores and segmentation...")

	scored := make([]*models.ScoredRFM, len(rows))
	if len(rows) == 0 {
		return scored, stats, nil
	}

	recency := make([]float64, len(rows))
	frequency := make([]float64, len(rows))
	monetary := make([]float64, len(rows))
	for i, r := range rows {
		recency[i] = float64(r.Recency)
		frequency[i] = float64(r.Frequency)
		monetary[i] = r.Monetary
	}

	rBins, err := s.bins("recency", recency, stats)
	if err != nil {
		return nil, stats, err
	}
	fBins, err := s.bins("frequency", frequency, stats)
	if err != nil {
		return nil, stats, err
	}
	mBins, err := s.bins("monetary", monetary, stats)
	if err != nil {
		return nil, stats, err
	}

	var total int
	for i, r := range rows {
		rs := quintiles - rBins[i]
		fs := fBins[i] + 1
		ms := mBins[i] + 1
		group := fmt.Sprintf("%d%d%d", rs, fs, ms)

		scored[i] = &models.ScoredRFM{
			CustomerRFM: *r,
			RScore:      rs,
			FScore:      fs,
			MScore:      ms,
			RFMScore:    rs + fs + ms,
			RFMGroup:    group,
			Segment:     s.segments.Label(rs, fs, ms, group),
		}
		total += rs + fs + ms
	}

	stats.MeanRFMScore = float64(total) / float64(len(rows))
	s.metrics.MeanRFMScore.Set(stats.MeanRFMScore)

	s.logger.Info("[scorer] RFM scoring and segmentation successfully completed.")
	s.logger.Info("[scorer] Average RFM Score: %.2f", stats.MeanRFMScore)
	return scored, stats, nil
}

// bins returns the 0-based quintile index of each value and records the
// number of distinct edges.
func (s *Scorer) bins(metric string, values []float64, stats models.ScoreStats) ([]int, error) {
	edges, err := quintileEdges(values)
	if err != nil {
		return nil, fmt.Errorf("score %s: %w", metric, err)
	}

	distinct := countDistinct(edges)
	stats.DistinctEdges[metric] = distinct
	s.metrics.QuintileEdges.WithLabelValues(metric).Set(float64(distinct))
	if distinct < len(edges) {
		s.logger.Warn("[scorer] %s has only %d distinct quintile edges; tied values share the lowest bucket", metric, distinct)
	}
	s.logger.Debug("[scorer] %s edges: %v", metric, edges)

	out := make([]int, len(values))
	for i, v := range values {
		out[i] = binOf(v, edges)
	}
	return out, nil
}

// quintileEdges returns the 0, 20, 40, 60, 80 and 100th percentiles using
// linear interpolation between closest ranks.
func quintileEdges(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, ErrNoQuantileEdges
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	for _, v := range sorted {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value %v", ErrNoQuantileEdges, v)
		}
	}
	sort.Float64s(sorted)

	n := len(sorted)
	edges := make([]float64, quintiles+1)
	for k := 0; k <= quintiles; k++ {
		h := float64(n-1) * float64(k) / quintiles
		lo := int(math.Floor(h))
		hi := lo + 1
		if hi > n-1 {
			hi = n - 1
		}
		edges[k] = sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
	}
	return edges, nil
}

// binOf places v in the lowest bucket i with v <= edges[i+1].
func binOf(v float64, edges []float64) int {
	for i := 0; i < quintiles; i++ {
		if v <= edges[i+1] {
			return i
		}
	}
	return quintiles - 1
}

func countDistinct(edges []float64) int {
	n := 0
	for i, e := range edges {
		if i == 0 || e != edges[i-1] {
			n++
		}
	}
	return n
}
