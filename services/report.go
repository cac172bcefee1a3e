package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"rfm-segmenter/models"
	"rfm-segmenter/utils"
)

const topCustomers = 5

type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate summarises a pipeline result. A nil result or one without scored
// rows yields an empty report.
func (s *ReportService) Generate(res *models.PipelineResult) *models.RFMReport {
	report := &models.RFMReport{
		CustomersBySegment: make(map[string]int),
		ScoreDistribution:  make(map[int]int),
	}
	if res == nil {
		return report
	}

	report.RunID = res.RunID
	report.ReferenceDate = res.ReferenceDate
	report.RawTransactions = res.Clean.Input
	report.CleanTransactions = res.Clean.Output
	report.DroppedTransactions = res.Clean.Input - res.Clean.Output
	report.MeanRFMScore = round2(res.Score.MeanRFMScore)

	for metric, n := range res.Score.DistinctEdges {
		if n < 6 {
			report.DegradedMetrics = append(report.DegradedMetrics, metric)
		}
	}
	sort.Strings(report.DegradedMetrics)

	if len(res.Scored) == 0 {
		return report
	}
	report.TotalCustomers = len(res.Scored)

	report.MinRecency = res.Scored[0].Recency
	report.MaxRecency = res.Scored[0].Recency
	var total float64
	for _, r := range res.Scored {
		total += r.Monetary
		if r.Recency < report.MinRecency {
			report.MinRecency = r.Recency
		}
		if r.Recency > report.MaxRecency {
			report.MaxRecency = r.Recency
		}
		if r.Frequency > report.MaxFrequency {
			report.MaxFrequency = r.Frequency
		}
		report.CustomersBySegment[r.Segment]++
		report.ScoreDistribution[r.RFMScore]++
	}
	report.AverageMonetary = round2(total / float64(len(res.Scored)))

	// Top customers by composite score, then spend
	ranked := make([]*models.ScoredRFM, len(res.Scored))
	copy(ranked, res.Scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RFMScore != ranked[j].RFMScore {
			return ranked[i].RFMScore > ranked[j].RFMScore
		}
		if ranked[i].Monetary != ranked[j].Monetary {
			return ranked[i].Monetary > ranked[j].Monetary
		}
		return ranked[i].CustomerID < ranked[j].CustomerID
	})
	if len(ranked) > topCustomers {
		ranked = ranked[:topCustomers]
	}
	report.TopCustomers = ranked

	s.logger.Debug("[report] %d customers across %d segments", report.TotalCustomers, len(report.CustomersBySegment))
	return report
}

func (s *ReportService) Print(w io.Writer, r *models.RFMReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 RFM SEGMENTATION REPORT\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run id                 : %s\n", r.RunID)
	if !r.ReferenceDate.IsZero() {
		fmt.Fprintf(w, "  Reference date         : %s\n", r.ReferenceDate.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "  Transactions read      : \033[1m%d\033[0m\n", r.RawTransactions)
	fmt.Fprintf(w, "  Transactions kept      : \033[1m%d\033[0m (dropped %d)\n", r.CleanTransactions, r.DroppedTransactions)
	fmt.Fprintf(w, "  Customers              : \033[1m%d\033[0m\n", r.TotalCustomers)
	fmt.Fprintln(w)

	// Score stats
	fmt.Fprintf(w, "\033[1;33m  Score Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.TotalCustomers > 0 {
		fmt.Fprintf(w, "  Average RFM score : \033[1;32m%.2f\033[0m\n", r.MeanRFMScore)
		fmt.Fprintf(w, "  Average monetary  : \033[1;32m%.2f\033[0m\n", r.AverageMonetary)
		fmt.Fprintf(w, "  Recency range     : %d – %d days\n", r.MinRecency, r.MaxRecency)
		fmt.Fprintf(w, "  Max frequency     : %d\n", r.MaxFrequency)
	} else {
		fmt.Fprintf(w, "  No scored customers\n")
	}
	if len(r.DegradedMetrics) > 0 {
		fmt.Fprintf(w, "  \033[1;31mTied quintiles    : %s\033[0m\n", strings.Join(r.DegradedMetrics, ", "))
	}
	fmt.Fprintln(w)

	// Top customers
	fmt.Fprintf(w, "\033[1;33m  Top %d Customers\033[0m\n", topCustomers)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopCustomers) == 0 {
		fmt.Fprintf(w, "  No customers found\n")
	} else {
		for i, c := range r.TopCustomers {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-20s %s  score %2d  %12.2f\n",
				i+1, truncate(c.CustomerID, 20), c.RFMGroup, c.RFMScore, c.Monetary)
		}
	}
	fmt.Fprintln(w)

	// Segments
	fmt.Fprintf(w, "\033[1;33m  Customers by Segment\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.CustomersBySegment) == 0 {
		fmt.Fprintf(w, "  No segment data\n")
	} else {
		type segCount struct {
			seg   string
			count int
		}
		var segs []segCount
		for seg, cnt := range r.CustomersBySegment {
			if seg == "" {
				seg = "(unlabelled)"
			}
			segs = append(segs, segCount{seg, cnt})
		}
		sort.Slice(segs, func(i, j int) bool {
			if segs[i].count != segs[j].count {
				return segs[i].count > segs[j].count
			}
			return segs[i].seg < segs[j].seg
		})
		for _, sc := range segs {
			bar := strings.Repeat("█", barWidth(sc.count, r.TotalCustomers))
			fmt.Fprintf(w, "  %-22s %s (%d)\n", truncate(sc.seg, 22), bar, sc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// barWidth scales count to at most 30 blocks, with at least one block for
// any non-zero count.
func barWidth(count, total int) int {
	if total <= 0 || count <= 0 {
		return 0
	}
	w := count * 30 / total
	if w == 0 {
		w = 1
	}
	return w
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
