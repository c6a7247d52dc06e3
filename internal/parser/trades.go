package parser

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

const (
	tradesMarker            = "Заключенные в отчетном периоде сделки с ценными бумагами"
	uncompletedTradesMarker = "Незавершенные в отчетном периоде сделки"
	tradesLookahead         = 8
	tradeHeaderRows         = 3
	commissionPlaces        = 4
)

var tradeColumns = keywordTable{
	{key: ColInstrument, keywords: []string{"наименование ценной бумаги", "наименование", "isin", "регистрац"}},
	{key: ColDate, keywords: []string{"дата и время", "дата заключения", "дата"}},
	{key: ColOperationID, keywords: []string{"№ сделки", "номер сделки", "№сделки"}},
	{key: ColType, keywords: []string{"вид сделки", "тип сделки", "направление", "вид"}},
	{key: ColACI, keywords: []string{"нкд"}},
	{key: ColCommission, keywords: []string{"комисс"}, multi: true},
	{key: ColQuantity, keywords: []string{"колич", "кол-во", "шт"}},
	{key: ColPrice, keywords: []string{"цена", "% для облигац", "процент"}},
	{key: ColCurrency, keywords: []string{"валюта расчет", "валюта"}},
	{key: ColSum, keywords: []string{"сумма сделки", "сумма"}},
	{key: ColTicker, keywords: []string{"тикер"}},
	{key: ColISIN, keywords: []string{"isin"}},
	{key: ColRegNumber, keywords: []string{"регистрац"}},
	{key: ColComment, keywords: []string{"коммент", "примечан"}},
}

// instrument is the security the following trade rows belong to.
type instrument struct {
	ticker    string
	isin      string
	regNumber string
}

// tradeFold is the state threaded through the trade rows: the instrument
// announced by the last non-empty instrument cell.
type tradeFold struct {
	cols    HeaderMap
	current instrument
}

// parseTrades reads the "concluded securities trades" table. Records are
// returned ordered by date; rows with equal dates keep their sheet order.
func parseTrades(grid models.Grid, log zerolog.Logger) ([]models.OperationRecord, *models.ParseStats) {
	stats := models.NewParseStats()

	start, ok := findSectionStart(grid, tradesMarker)
	if !ok {
		log.Info().Msg("trades section not found")
		return nil, stats
	}
	stats.SectionFound = true

	headerIdx, ok := findHeaderRow(grid, start, tradesLookahead+1, isTradeHeader)
	if !ok {
		headerIdx, ok = findHeaderRow(grid, start, wideLookahead, isLooseTradeHeader)
	}
	if !ok {
		log.Warn().Int("section_row", start-1).Msg("trades header row not found")
		return nil, stats
	}
	stats.HeaderFound = true

	header, used := buildCombinedHeader(grid, headerIdx, tradeHeaderRows)
	fold := &tradeFold{cols: mapHeaderIndices(header, tradeColumns)}
	log.Debug().Int("header_row", headerIdx).Int("header_rows", used).Interface("columns", fold.cols.Keys()).Msg("trades header mapped")

	var ops []models.OperationRecord
	for i := headerIdx + used; i < len(grid); i++ {
		row := grid[i]
		text := rowText(row)
		if text == "" || strings.Contains(text, normText(uncompletedTradesMarker)) {
			break
		}
		stats.TotalRows++

		op, reason := fold.step(row)
		if reason != "" {
			stats.Skip(reason)
			continue
		}
		ops = append(ops, op)
		stats.Parsed++
	}

	sort.SliceStable(ops, func(a, b int) bool {
		return ops[a].Date.Before(ops[b].Date.Time)
	})

	log.Info().Int("parsed", stats.Parsed).Int("rows", stats.TotalRows).Msg("securities trades parsed")
	return ops, stats
}

// step folds one row into the state and converts it into a trade record.
// A non-empty reason means the row was dropped and names its counter.
func (f *tradeFold) step(row models.Row) (models.OperationRecord, string) {
	if isTotalRow(row) {
		return models.OperationRecord{}, models.SkipTotalRow
	}

	announced := f.updateInstrument(row)

	side := strings.TrimSpace(normalizeText(f.cols.Cell(row, ColType)))
	if side == "" && announced {
		return models.OperationRecord{}, models.SkipInstrumentRow
	}
	typ, ok := tradeSide(side)
	if !ok {
		return models.OperationRecord{}, models.SkipUnknownSide
	}

	qty := toNonNegativeInt(f.cols.Cell(row, ColQuantity))
	if qty == 0 {
		return models.OperationRecord{}, models.SkipZeroQuantity
	}

	date, ok := toDate(f.cols.Cell(row, ColDate))
	if !ok {
		return models.OperationRecord{}, models.SkipNoDate
	}

	ticker := strings.TrimSpace(f.cols.Cell(row, ColTicker).String())
	if ticker == "" {
		ticker = f.current.ticker
	}

	return models.OperationRecord{
		Date:          date,
		OperationType: typ,
		PaymentSum:    decimalOrZero(f.cols.Cell(row, ColSum)),
		Currency:      normalizeCurrency(f.cols.Cell(row, ColCurrency).String()),
		Ticker:        ticker,
		ISIN:          f.current.isin,
		RegNumber:     f.current.regNumber,
		Price:         decimalOrZero(f.cols.Cell(row, ColPrice)),
		Quantity:      qty,
		ACI:           decimalOrZero(f.cols.Cell(row, ColACI)),
		Comment:       strings.TrimSpace(f.cols.Cell(row, ColComment).String()),
		OperationID:   strings.TrimSpace(f.cols.Cell(row, ColOperationID).String()),
		Commission:    f.commission(row),
	}, ""
}

// updateInstrument replaces the current instrument when the row carries one
// and reports whether it did. Empty instrument cells keep the previous one.
func (f *tradeFold) updateInstrument(row models.Row) bool {
	var parts []string
	for _, key := range []string{ColInstrument, ColISIN, ColRegNumber} {
		if t := strings.TrimSpace(f.cols.Cell(row, key).String()); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return false
	}
	isin, reg := extractIdentifiers(strings.Join(parts, ", "))
	f.current = instrument{
		ticker:    instrumentTicker(f.cols.Cell(row, ColInstrument).String()),
		isin:      isin,
		regNumber: reg,
	}
	return true
}

// commission sums the magnitude of every commission column, rounded to
// four places.
func (f *tradeFold) commission(row models.Row) decimal.Decimal {
	total := decimal.Zero
	for _, idx := range f.cols.All(ColCommission) {
		total = total.Add(decimalOrZero(row.Cell(idx)).Abs())
	}
	return total.Round(commissionPlaces)
}

func tradeSide(text string) (models.OperationType, bool) {
	switch {
	case strings.Contains(text, "покуп"):
		return models.OpBuy, true
	case strings.Contains(text, "продаж"), strings.Contains(text, "продать"):
		return models.OpSale, true
	case strings.Contains(text, "куп"):
		return models.OpBuy, true
	case strings.Contains(text, "прод"):
		return models.OpSale, true
	}
	return "", false
}

func isTotalRow(row models.Row) bool {
	for _, c := range row {
		if strings.HasPrefix(normalizeText(c), "итого") {
			return true
		}
	}
	return false
}
