package services

import (
	"time"

	"rfm-segmenter/models"
	"rfm-segmenter/utils"
)

var baseDay = time.Date(2016, time.August, 1, 0, 0, 0, 0, time.UTC)

func newTestLogger() *utils.Logger { return utils.Discard() }

// rawTxn builds a complete ledger row; callers blank fields to make them missing.
func rawTxn(id, customer, date, amount string) *models.RawTransaction {
	return &models.RawTransaction{
		TransactionID:   id,
		CustomerID:      customer,
		TransactionDate: date,
		Amount:          amount,
		CustomerDOB:     "10/1/94",
		Gender:          "F",
		Location:        "MUMBAI",
		AccountBalance:  "17819.05",
	}
}

// txn builds a cleaned transaction on day n (day 1 is baseDay).
func txn(id, customer string, n int, amount float64) *models.Transaction {
	return &models.Transaction{
		TransactionID:   id,
		CustomerID:      customer,
		TransactionDate: baseDay.AddDate(0, 0, n-1),
		Amount:          amount,
		CustomerDOB:     "1/1/90",
		Gender:          "M",
		Location:        "DELHI",
		AccountBalance:  1000,
	}
}

func indexRFM(rows []*models.CustomerRFM) map[string]*models.CustomerRFM {
	out := make(map[string]*models.CustomerRFM, len(rows))
	for _, r := range rows {
		out[r.CustomerID] = r
	}
	return out
}

// sampleRFM returns ten customers whose three metrics all rise with the index.
func sampleRFM() []*models.CustomerRFM {
	rows := make([]*models.CustomerRFM, 10)
	for i := range rows {
		n := i + 1
		rows[i] = &models.CustomerRFM{
			CustomerID: string(rune('A' + i)),
			Recency:    n,
			Frequency:  n,
			Monetary:   float64(10 * n),
		}
	}
	return rows
}
