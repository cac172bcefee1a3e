package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"rfm-segmenter/models"
)

// ErrSourceNotFound is returned when the ledger file does not exist.
var ErrSourceNotFound = errors.New("csv file not found")

// Ledger column names. Other columns are kept as RawTransaction.Extra.
const (
	colTransactionID  = "TransactionID"
	colCustomerID     = "CustomerID"
	colDate           = "TransactionDate"
	colAmount         = "TransactionAmount"
	colCustomerDOB    = "CustomerDOB"
	colGender         = "CustGender"
	colLocation       = "CustLocation"
	colAccountBalance = "CustAccountBalance"
)

// headerAliases maps alternative header spellings to the canonical name.
var headerAliases = map[string]string{
	"TransactionAmount (INR)": colAmount,
}

// naValues are read as missing, the same set pandas treats as NA by default.
var naValues = map[string]bool{
	"NA": true, "N/A": true, "n/a": true, "NaN": true, "nan": true, "-NaN": true,
	"-nan": true, "NULL": true, "null": true, "None": true, "<NA>": true, "#N/A": true,
}

// CSVReader loads a transaction ledger from a CSV file.
type CSVReader struct {
	path string
}

func NewCSVReader(path string) *CSVReader {
	return &CSVReader{path: path}
}

// Load reads every row of the file. A missing file returns nil records and
// an error wrapping ErrSourceNotFound.
func (c *CSVReader) Load(ctx context.Context) ([]*models.RawTransaction, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, c.path)
		}
		return nil, fmt.Errorf("csv: open %q: %w", c.path, err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := ParseTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("csv: %q: %w", c.path, err)
	}
	return rows, nil
}

func (c *CSVReader) Close() error { return nil }

// ParseTransactions decodes a ledger from r. A UTF-8 or UTF-16 byte order
// mark is honoured and stripped. Short rows leave the trailing fields
// missing rather than failing the whole file.
func ParseTransactions(r io.Reader) ([]*models.RawTransaction, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file: no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}
	extra := extraColumns(header, index)

	rows := make([]*models.RawTransaction, 0)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(name string) string {
			i := index[name]
			if i >= len(rec) {
				return ""
			}
			v := strings.TrimSpace(rec[i])
			if naValues[v] {
				return ""
			}
			return v
		}

		row := &models.RawTransaction{
			TransactionID:   field(colTransactionID),
			CustomerID:      field(colCustomerID),
			TransactionDate: field(colDate),
			Amount:          field(colAmount),
			CustomerDOB:     field(colCustomerDOB),
			Gender:          field(colGender),
			Location:        field(colLocation),
			AccountBalance:  field(colAccountBalance),
		}
		for _, i := range extra {
			v := ""
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			row.Extra = append(row.Extra, v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// headerIndex maps each consumed column to its position in header.
func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range []string{
		colTransactionID, colCustomerID, colDate, colAmount,
		colCustomerDOB, colGender, colLocation, colAccountBalance,
	} {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

// extraColumns lists the positions of header columns headerIndex did not map.
func extraColumns(header []string, index map[string]int) []int {
	used := make(map[int]bool, len(index))
	for _, i := range index {
		used[i] = true
	}
	var extra []int
	for i := range header {
		if !used[i] {
			extra = append(extra, i)
		}
	}
	return extra
}
