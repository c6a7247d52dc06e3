package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

// Semantic column keys.
const (
	ColDate        = "date"
	ColType        = "type"
	ColSum         = "sum"
	ColIncome      = "income"
	ColExpense     = "expense"
	ColCurrency    = "currency"
	ColComment     = "comment"
	ColPrice       = "price"
	ColQuantity    = "quantity"
	ColTicker      = "ticker"
	ColISIN        = "isin"
	ColRegNumber   = "reg_number"
	ColACI         = "aci"
	ColOperationID = "operation_id"
	ColInstrument  = "instrument"
	ColCommission  = "commission"
)

// keywordRule maps one semantic key to the header fragments that announce it.
// Rules marked multi collect every matching cell instead of the first one.
type keywordRule struct {
	key      string
	keywords []string
	multi    bool
}

// keywordTable is ordered: a header cell claimed by an earlier key is not
// offered to later ones, so specific keys come before generic ones.
type keywordTable []keywordRule

// HeaderMap holds the column index of every recognized header key. Keys
// matched by several cells keep all of them in order; Index returns the first.
type HeaderMap struct {
	columns map[string][]int
}

// Index returns the first column mapped to key.
func (h HeaderMap) Index(key string) (int, bool) {
	cols := h.columns[key]
	if len(cols) == 0 {
		return 0, false
	}
	return cols[0], true
}

// All returns every column mapped to key, left to right.
func (h HeaderMap) All(key string) []int {
	return h.columns[key]
}

// Has reports whether key was found in the header.
func (h HeaderMap) Has(key string) bool {
	return len(h.columns[key]) > 0
}

// Len returns the number of distinct keys mapped.
func (h HeaderMap) Len() int {
	return len(h.columns)
}

// Cell returns the row cell under key, or an empty cell when unmapped.
func (h HeaderMap) Cell(row models.Row, key string) models.Cell {
	idx, ok := h.Index(key)
	if !ok {
		return models.Empty()
	}
	return row.Cell(idx)
}

// Keys returns the mapped keys with their first column, for logging.
func (h HeaderMap) Keys() map[string]int {
	out := make(map[string]int, len(h.columns))
	for k, cols := range h.columns {
		out[k] = cols[0]
	}
	return out
}

// rowText joins the non-empty normalized cells of a row with single spaces.
func rowText(row models.Row) string {
	parts := make([]string, 0, len(row))
	for _, c := range row {
		if t := normalizeText(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// rowCells returns the non-empty normalized cell texts of a row.
func rowCells(row models.Row) []string {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		if t := normalizeText(c); t != "" {
			cells = append(cells, t)
		}
	}
	return cells
}

// findSectionStart returns the index of the row right after the first row
// whose text contains marker.
func findSectionStart(grid models.Grid, marker string) (int, bool) {
	needle := normText(marker)
	if needle == "" {
		return 0, false
	}
	for i, row := range grid {
		if strings.Contains(rowText(row), needle) {
			return i + 1, true
		}
	}
	return 0, false
}

// headerPredicate decides whether a row's normalized cells form a header.
type headerPredicate func(cells []string) bool

// findHeaderRow scans at most lookahead rows starting at start and returns
// the first row that satisfies isHeader.
func findHeaderRow(grid models.Grid, start, lookahead int, isHeader headerPredicate) (int, bool) {
	if start < 0 {
		start = 0
	}
	end := start + lookahead
	if end > len(grid) {
		end = len(grid)
	}
	for i := start; i < end; i++ {
		cells := rowCells(grid[i])
		if len(cells) == 0 {
			continue
		}
		if isHeader(cells) {
			return i, true
		}
	}
	return 0, false
}

func anyCellContains(cells []string, fragments ...string) bool {
	for _, c := range cells {
		for _, f := range fragments {
			if strings.Contains(c, f) {
				return true
			}
		}
	}
	return false
}

// isCashFlowHeader: a date column plus a sum, currency or operation column.
func isCashFlowHeader(cells []string) bool {
	return anyCellContains(cells, "дата") &&
		anyCellContains(cells, "сумма", "валюта", "операц", "тип", "зачислен", "списан")
}

// isTradeHeader: an instrument-name column plus a date column.
func isTradeHeader(cells []string) bool {
	joined := strings.Join(cells, " ")
	hasName := strings.Contains(joined, "наименование ценной бумаги") ||
		(strings.Contains(joined, "наименование") && strings.Contains(joined, "ценн"))
	return hasName && strings.Contains(joined, "дата")
}

// isLooseTradeHeader is the relaxed predicate for the wide fallback scan.
func isLooseTradeHeader(cells []string) bool {
	joined := strings.Join(cells, " ")
	return strings.Contains(joined, "наименование") && strings.Contains(joined, "дата")
}

// buildCombinedHeader merges up to maxRows physical rows starting at
// headerIndex into one header text per column. Continuation rows must be
// text-only; a row holding a number, a date or a security identifier is
// data and ends the header. So is a row whose cell under the first header
// column opens with a capital letter, as instrument names do. The second
// result is the number of rows used.
func buildCombinedHeader(grid models.Grid, headerIndex, maxRows int) ([]string, int) {
	if headerIndex < 0 || headerIndex >= len(grid) {
		return nil, 0
	}
	anchor := firstFilledColumn(grid[headerIndex])
	var combined []string
	used := 0
	for i := headerIndex; i < len(grid) && used < maxRows; i++ {
		row := grid[i]
		if used > 0 && !isHeaderContinuation(row, anchor) {
			break
		}
		for len(combined) < len(row) {
			combined = append(combined, "")
		}
		for col, c := range row {
			t := normalizeText(c)
			if t == "" {
				continue
			}
			if combined[col] == "" {
				combined[col] = t
			} else {
				combined[col] += " " + t
			}
		}
		used++
	}
	return combined, used
}

func isHeaderContinuation(row models.Row, anchor int) bool {
	if row.IsBlank() {
		return false
	}
	if first, _ := utf8.DecodeRuneInString(strings.TrimSpace(row.Cell(anchor).String())); first != utf8.RuneError && !unicode.IsLower(first) {
		return false
	}
	for _, c := range row {
		switch c.Kind {
		case models.CellNumber, models.CellDateTime:
			return false
		case models.CellText:
			if _, ok := parseDateText(c.Raw); ok {
				return false
			}
			if isin, reg := extractIdentifiers(c.Raw); isin != "" || reg != "" {
				return false
			}
		}
	}
	return true
}

func firstFilledColumn(row models.Row) int {
	for i, c := range row {
		if !c.IsEmpty() {
			return i
		}
	}
	return 0
}

// singleRowHeader returns the normalized texts of one row, one per column.
func singleRowHeader(row models.Row) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = normalizeText(c)
	}
	return out
}

// mapHeaderIndices assigns, for each rule in table order, the leftmost
// unclaimed header cell whose text contains one of the rule's keywords.
// Multi rules take every such cell.
func mapHeaderIndices(header []string, table keywordTable) HeaderMap {
	hm := HeaderMap{columns: map[string][]int{}}
	claimed := make([]bool, len(header))
	for _, rule := range table {
		for idx, cell := range header {
			if claimed[idx] || cell == "" {
				continue
			}
			if containsAny(cell, rule.keywords) {
				hm.columns[rule.key] = append(hm.columns[rule.key], idx)
				claimed[idx] = true
				if !rule.multi {
					break
				}
			}
		}
	}
	return hm
}
