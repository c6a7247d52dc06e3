package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind tags the variant held by a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDateTime
)

// Cell is a single spreadsheet value, classified once when the grid is read.
type Cell struct {
	Kind   CellKind
	Raw    string // original text as read from the sheet
	Number decimal.Decimal
	Time   time.Time
}

// Row is one physical sheet row.
type Row []Cell

// Grid is the full set of rows of one worksheet.
type Grid []Row

// Empty returns an empty cell.
func Empty() Cell {
	return Cell{Kind: CellEmpty}
}

// Text builds a text cell. Blank strings become empty cells.
func Text(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Empty()
	}
	return Cell{Kind: CellText, Raw: s}
}

// Number builds a numeric cell.
func Number(d decimal.Decimal) Cell {
	return Cell{Kind: CellNumber, Raw: d.String(), Number: d}
}

// DateTime builds a date-time cell.
func DateTime(t time.Time) Cell {
	return Cell{Kind: CellDateTime, Raw: t.Format("2006-01-02 15:04:05"), Time: t}
}

// FromString classifies a raw sheet value: blank, plain decimal number, or text.
func FromString(s string) Cell {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Empty()
	}
	if d, err := decimal.NewFromString(trimmed); err == nil && looksNumeric(trimmed) {
		return Cell{Kind: CellNumber, Raw: trimmed, Number: d}
	}
	return Cell{Kind: CellText, Raw: s}
}

// looksNumeric rejects inputs decimal accepts but a sheet never means as
// numbers, such as exponent forms inside codes ("1E5").
func looksNumeric(s string) bool {
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
		case (r == '-' || r == '+') && i == 0:
		default:
			return false
		}
	}
	return true
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// String returns the display text of the cell.
func (c Cell) String() string {
	switch c.Kind {
	case CellEmpty:
		return ""
	default:
		return c.Raw
	}
}

// Cell returns the cell at column i, or an empty cell when the row is shorter.
func (r Row) Cell(i int) Cell {
	if i < 0 || i >= len(r) {
		return Empty()
	}
	return r[i]
}

// IsBlank reports whether every cell of the row is empty.
func (r Row) IsBlank() bool {
	for _, c := range r {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// TextRow builds a row of text cells, handy for tests and CSV-like sources.
func TextRow(values ...string) Row {
	row := make(Row, len(values))
	for i, v := range values {
		row[i] = FromString(v)
	}
	return row
}
