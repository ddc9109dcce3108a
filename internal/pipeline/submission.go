package pipeline

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteSubmission writes predictions as a TransactionID,isFraud CSV in
// input order.
func WriteSubmission(w io.Writer, preds []Prediction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"TransactionID", "isFraud"}); err != nil {
		return err
	}
	for _, p := range preds {
		rec := []string{
			strconv.FormatInt(p.TransactionID, 10),
			strconv.FormatFloat(p.Probability, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
