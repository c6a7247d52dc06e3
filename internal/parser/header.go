package parser

import (
	"regexp"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

var (
	periodPattern     = regexp.MustCompile(`за период с (\d{2}\.\d{2}\.\d{4}) по (\d{2}\.\d{2}\.\d{4})`)
	subaccountPattern = regexp.MustCompile(`№\s*субсчета[:\s]*([0-9-]+)`)
)

// agreementMarker labels the row holding the brokerage agreement date.
const agreementMarker = "о предоставлении услуг"

// parseStatementHeader scans rows top-down for the sub-account number, the
// agreement date and the reporting period. Dates are returned as ISO dates.
func parseStatementHeader(grid models.Grid) models.StatementHeader {
	var h models.StatementHeader
	for _, row := range grid {
		text := rowText(row)
		if text == "" {
			continue
		}

		if h.DateStart == "" || h.DateEnd == "" {
			if m := periodPattern.FindStringSubmatch(text); m != nil {
				h.DateStart = isoDate(m[1])
				h.DateEnd = isoDate(m[2])
			}
		}

		if h.AccountDateStart == "" && contains(text, agreementMarker) {
			if d, ok := agreementDate(row); ok {
				h.AccountDateStart = d.Format("2006-01-02")
			}
		}

		if h.AccountID == "" {
			if m := subaccountPattern.FindStringSubmatch(text); m != nil {
				h.AccountID = m[1]
			}
		}

		if h.AccountID != "" && h.AccountDateStart != "" && h.DateStart != "" && h.DateEnd != "" {
			break
		}
	}
	return h
}

// maxAgreementSerial is 2100-01-01. The agreement row also carries the
// agreement number, which must not be read as a serial date.
const maxAgreementSerial = 73051

// agreementDate prefers text and typed dates on the row. A numeric cell is
// taken as a serial date only when no other date is present and the serial
// falls between 1970 and 2100.
func agreementDate(row models.Row) (models.Timestamp, bool) {
	for _, c := range row {
		if c.Kind == models.CellDateTime || c.Kind == models.CellText {
			if d, ok := toDate(c); ok {
				return d, true
			}
		}
	}
	for _, c := range row {
		if c.Kind != models.CellNumber {
			continue
		}
		if serial, _ := c.Number.Float64(); serial > maxAgreementSerial {
			continue
		}
		if d, ok := toDate(c); ok {
			return d, true
		}
	}
	return models.Timestamp{}, false
}

func isoDate(s string) string {
	d, ok := parseDateText(s)
	if !ok {
		return s
	}
	return d.Format("2006-01-02")
}
