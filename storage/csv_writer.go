package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"rfm-segmenter/models"
)

var scoredHeader = []string{
	"CustomerID", "Recency", "Frequency", "Monetary",
	"CustomerDOB", "CustGender", "CustLocation", "CustAccountBalance",
	"R_Score", "F_Score", "M_Score", "RFM_Score", "RFM_Group", "Segment",
}

// CSVWriter writes scored customers and clustering features to two CSV
// files. Either path may be empty, in which case that output is skipped.
// It is safe for concurrent use.
type CSVWriter struct {
	mu       sync.Mutex
	scored   *csvFile
	features *csvFile
}

type csvFile struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the output files. Intermediate
// directories are created automatically.
func NewCSVWriter(scoredPath, featuresPath string) (*CSVWriter, error) {
	w := &CSVWriter{}
	var err error
	if w.scored, err = createCSV(scoredPath); err != nil {
		return nil, err
	}
	if w.features, err = createCSV(featuresPath); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func createCSV(path string) (*csvFile, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}
	return &csvFile{file: f, writer: csv.NewWriter(f)}, nil
}

// WriteScored writes a header row followed by one row per customer.
func (c *CSVWriter) WriteScored(rows []*models.ScoredRFM) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scored == nil {
		return nil
	}

	w := c.scored.writer
	if err := w.Write(scoredHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range rows {
		row := []string{
			r.CustomerID,
			strconv.Itoa(r.Recency),
			strconv.Itoa(r.Frequency),
			formatFloat(r.Monetary),
			r.CustomerDOB,
			r.Gender,
			r.Location,
			formatFloat(r.AccountBalance),
			strconv.Itoa(r.RScore),
			strconv.Itoa(r.FScore),
			strconv.Itoa(r.MScore),
			strconv.Itoa(r.RFMScore),
			r.RFMGroup,
			r.Segment,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteFeatures writes the scaled feature matrix keyed by customer id.
func (c *CSVWriter) WriteFeatures(set *models.FeatureSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.features == nil || set == nil {
		return nil
	}

	w := c.features.writer
	if err := w.Write(append([]string{"CustomerID"}, models.FeatureColumns...)); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range set.Rows {
		row := []string{r.CustomerID, formatFloat(r.Recency), formatFloat(r.Frequency), formatFloat(r.Monetary)}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// Close flushes and closes the underlying files.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for _, f := range []*csvFile{c.scored, c.features} {
		if f == nil {
			continue
		}
		f.writer.Flush()
		if err := f.file.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.scored, c.features = nil, nil
	return first
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
