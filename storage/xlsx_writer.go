package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"rfm-segmenter/models"
)

const (
	SheetScored   = "rfm"
	SheetFeatures = "features"
)

// XLSXWriter collects scored customers and features into one workbook, one
// sheet each. The workbook is saved on Close.
type XLSXWriter struct {
	mu   sync.Mutex
	path string
	file *excelize.File
}

func NewXLSXWriter(path string) (*XLSXWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetScored); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetFeatures); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx: add sheet: %w", err)
	}
	return &XLSXWriter{path: path, file: f}, nil
}

func (x *XLSXWriter) WriteScored(rows []*models.ScoredRFM) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	header := make([]interface{}, len(scoredHeader))
	for i, h := range scoredHeader {
		header[i] = h
	}
	if err := x.setRow(SheetScored, 1, header); err != nil {
		return err
	}
	for i, r := range rows {
		err := x.setRow(SheetScored, i+2, []interface{}{
			r.CustomerID, r.Recency, r.Frequency, r.Monetary,
			r.CustomerDOB, r.Gender, r.Location, r.AccountBalance,
			r.RScore, r.FScore, r.MScore, r.RFMScore, r.RFMGroup, r.Segment,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (x *XLSXWriter) WriteFeatures(set *models.FeatureSet) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if set == nil {
		return nil
	}

	header := []interface{}{"CustomerID"}
	for _, c := range models.FeatureColumns {
		header = append(header, c)
	}
	if err := x.setRow(SheetFeatures, 1, header); err != nil {
		return err
	}
	for i, r := range set.Rows {
		if err := x.setRow(SheetFeatures, i+2, []interface{}{r.CustomerID, r.Recency, r.Frequency, r.Monetary}); err != nil {
			return err
		}
	}
	return nil
}

func (x *XLSXWriter) setRow(sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := x.file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx: write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// Close saves the workbook and releases it.
func (x *XLSXWriter) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.file == nil {
		return nil
	}

	saveErr := x.file.SaveAs(x.path)
	closeErr := x.file.Close()
	x.file = nil
	if saveErr != nil {
		return fmt.Errorf("xlsx: save %q: %w", x.path, saveErr)
	}
	return closeErr
}
