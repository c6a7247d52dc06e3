package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

var csvColumns = []string{
	"date", "operation_type", "payment_sum", "currency", "ticker", "isin", "reg_number",
	"price", "quantity", "aci", "comment", "operation_id", "commission",
}

// CSVWriter writes one line per operation. With IncludeHeader the account
// metadata precedes the table as "# key,value" rows.
type CSVWriter struct {
	IncludeHeader bool
}

func (w *CSVWriter) ContentType() string {
	return "text/csv; charset=utf-8"
}

func (w *CSVWriter) Write(out io.Writer, result *models.StatementResult) error {
	writer := csv.NewWriter(out)

	if w.IncludeHeader {
		meta := [][2]string{
			{"# Broker", string(result.Broker)},
			{"# Account", result.AccountID},
			{"# Account Opened", result.AccountDateStart},
			{"# Period Start", result.DateStart},
			{"# Period End", result.DateEnd},
		}
		for _, kv := range meta {
			if kv[1] == "" {
				continue
			}
			if err := writer.Write(kv[:]); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, op := range result.Operations {
		row := []string{
			op.Date.ISO(),
			string(op.OperationType),
			op.PaymentSum.String(),
			op.Currency,
			op.Ticker,
			op.ISIN,
			op.RegNumber,
			op.Price.String(),
			strconv.FormatInt(op.Quantity, 10),
			op.ACI.String(),
			op.Comment,
			op.OperationID,
			op.Commission.String(),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
