package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

var (
	whitespaceRun = regexp.MustCompile(`[\s\x{00A0}\x{202F}\x{2007}]+`)
	// DD.MM.YYYY or DD,MM,YYYY somewhere inside a longer text cell.
	embeddedDate = regexp.MustCompile(`\d{1,2}[.,]\d{1,2}[.,]\d{4}`)
)

// Layouts tried in order for text dates; first match wins.
var dateLayouts = []struct {
	layout   string
	hasClock bool
}{
	{"2.1.2006 15:04:05", true},
	{"2.1.2006 15:04", true},
	{"2.1.2006", false},
	{"2.1.06 15:04:05", true},
	{"2.1.06 15:04", true},
	{"2.1.06", false},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02T15:04:05", true},
	{time.RFC3339, true},
	{"2006-01-02", false},
}

// normText lower-cases s, folds ё into е and collapses every whitespace run
// (including non-breaking spaces) into a single space.
func normText(s string) string {
	s = norm.NFC.String(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "ё", "е")
}

// normalizeText is normText applied to a cell's display text.
func normalizeText(c models.Cell) string {
	return normText(c.String())
}

// toDecimal converts a cell into a decimal amount. Spaces are dropped and a
// comma decimal separator is accepted. The bool is false for empty or
// unparseable input.
func toDecimal(c models.Cell) (decimal.Decimal, bool) {
	switch c.Kind {
	case models.CellNumber:
		return c.Number, true
	case models.CellText:
		return parseAmount(c.Raw)
	}
	return decimal.Zero, false
}

func parseAmount(s string) (decimal.Decimal, bool) {
	s = whitespaceRun.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || s == "-" || s == "--" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// decimalOrZero is toDecimal with the failure case folded into zero.
func decimalOrZero(c models.Cell) decimal.Decimal {
	d, _ := toDecimal(c)
	return d
}

// toNonNegativeInt returns |value| rounded to the nearest integer, or 0.
func toNonNegativeInt(c models.Cell) int64 {
	d, ok := toDecimal(c)
	if !ok {
		return 0
	}
	return d.Abs().Round(0).IntPart()
}

// toDate resolves a cell into a timestamp. Numbers are spreadsheet serials
// (1900 date system, leap-year bug included); text goes through dateLayouts
// and then an embedded DD.MM.YYYY search.
func toDate(c models.Cell) (models.Timestamp, bool) {
	switch c.Kind {
	case models.CellDateTime:
		t := c.Time
		return models.Timestamp{Time: t, HasClock: hasClock(t)}, true
	case models.CellNumber:
		return serialToDate(c.Number)
	case models.CellText:
		return parseDateText(c.Raw)
	}
	return models.Timestamp{}, false
}

// minDateSerial is 1970-01-01. Smaller numbers in a date column are column
// numbering or counters, not dates.
const minDateSerial = 25569

func serialToDate(d decimal.Decimal) (models.Timestamp, bool) {
	serial, _ := d.Float64()
	if serial < minDateSerial {
		return models.Timestamp{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return models.Timestamp{}, false
	}
	// excelize returns sub-second noise for fractional serials.
	t = t.Round(time.Second)
	return models.Timestamp{Time: t, HasClock: !d.Equal(d.Floor())}, true
}

func parseDateText(s string) (models.Timestamp, bool) {
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return models.Timestamp{}, false
	}
	if strings.Count(s, ",") == 2 && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return models.Timestamp{Time: t, HasClock: l.hasClock}, true
		}
	}
	if m := embeddedDate.FindString(s); m != "" {
		m = strings.ReplaceAll(m, ",", ".")
		if t, err := time.Parse("2.1.2006", m); err == nil {
			return models.Timestamp{Time: t}, true
		}
	}
	return models.Timestamp{}, false
}

func hasClock(t time.Time) bool {
	return t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0
}

// currencySynonyms maps upper-cased sheet spellings to canonical codes.
var currencySynonyms = map[string]string{
	"AED": "AED", "AMD": "AMD", "BYN": "BYN", "CHF": "CHF", "CNY": "CNY",
	"EUR": "EUR", "GBP": "GBP", "HKD": "HKD", "JPY": "JPY", "KGS": "KGS",
	"KZT": "KZT", "NOK": "NOK", "RUB": "RUB", "RUR": "RUB",
	"РУБЛЬ": "RUB", "РУБ": "RUB", "РУБ.": "RUB", "РОССИЙСКИЙ РУБЛЬ": "RUB",
	"ДОЛЛАР США": "USD", "ЕВРО": "EUR", "ЮАНЬ": "CNY", "КИТАЙСКИЙ ЮАНЬ": "CNY",
	"SEK": "SEK", "TJS": "TJS", "TRY": "TRY", "USD": "USD", "UZS": "UZS",
	"XAG": "XAG", "XAU": "XAU", "ZAR": "ZAR",
}

// normalizeCurrency upper-cases raw and maps known synonyms; unknown codes
// pass through upper-cased.
func normalizeCurrency(raw string) string {
	raw = whitespaceRun.ReplaceAllString(raw, " ")
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return ""
	}
	if canonical, ok := currencySynonyms[code]; ok {
		return canonical
	}
	return code
}

// currencyGroup reports the currency named by a group row: a row whose only
// non-empty cell is a known currency spelling.
func currencyGroup(row models.Row) (string, bool) {
	cells := rowCells(row)
	if len(cells) != 1 {
		return "", false
	}
	code, ok := currencySynonyms[strings.ToUpper(cells[0])]
	return code, ok
}
