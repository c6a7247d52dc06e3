package parser

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

const (
	cashFlowMarker    = "Движение денежных средств"
	cashFlowLookahead = 40
	wideLookahead     = 200
)

var cashFlowColumns = keywordTable{
	{key: ColDate, keywords: []string{"дата"}},
	{key: ColOperationID, keywords: []string{"номер операции", "№ операции", "id операции", "ид операции", "номер"}},
	{key: ColACI, keywords: []string{"нкд", "накопленный купонный доход", "aci"}},
	{key: ColIncome, keywords: []string{"зачислен", "поступлен", "приход"}},
	{key: ColExpense, keywords: []string{"списан", "расход"}},
	{key: ColSum, keywords: []string{"сумма", "платеж"}},
	{key: ColCurrency, keywords: []string{"валюта", "вал."}},
	{key: ColType, keywords: []string{"тип операции", "вид операции", "наименование операции", "операц", "тип", "вид"}},
	{key: ColPrice, keywords: []string{"цена"}},
	{key: ColQuantity, keywords: []string{"количеств", "кол-во", "объем"}},
	{key: ColTicker, keywords: []string{"тикер"}},
	{key: ColISIN, keywords: []string{"isin"}},
	{key: ColRegNumber, keywords: []string{"регистрац", "рег. номер"}},
	{key: ColComment, keywords: []string{"коммент", "примечан", "назначение", "информация", "описание"}},
}

// withholdingPattern finds the tax withheld from a dividend in its comment,
// e.g. "налог 1 234,56".
var withholdingPattern = regexp.MustCompile(`(?i)налог\s+([0-9][0-9\s\x{00A0}]*[.,][0-9]{2})`)

// cashFlowTerminators end the operations table when found anywhere in a row.
var cashFlowTerminators = []string{"итого", "всего", "баланс", "остаток", "внебиржевой рынок", "иностранный рынок"}

// parseCashFlow reads the "movement of funds" table. Rows are consumed from
// the located header until a blank row, a terminator row or the end of the
// grid. A missing section or header yields no records and a flag in stats.
//
// Templates without a currency column group operations under a row naming
// the currency ("Рубль", "USD"). Such a row sets the currency of the rows
// below it and, like a terminator, is not counted in TotalRows.
func parseCashFlow(grid models.Grid, log zerolog.Logger) ([]models.OperationRecord, *models.ParseStats) {
	stats := models.NewParseStats()

	start, ok := findSectionStart(grid, cashFlowMarker)
	if !ok {
		log.Info().Msg("cash-flow section not found")
		return nil, stats
	}
	stats.SectionFound = true

	headerIdx, ok := findHeaderRow(grid, start, cashFlowLookahead, isCashFlowHeader)
	if !ok {
		headerIdx, ok = findHeaderRow(grid, start, wideLookahead, isCashFlowHeader)
	}
	if !ok {
		log.Warn().Int("section_row", start-1).Msg("cash-flow header row not found")
		return nil, stats
	}
	stats.HeaderFound = true

	cols := mapHeaderIndices(singleRowHeader(grid[headerIdx]), cashFlowColumns)
	log.Debug().Int("header_row", headerIdx).Interface("columns", cols.Keys()).Msg("cash-flow header mapped")

	var (
		ops           []models.OperationRecord
		groupCurrency string
	)
	for i := headerIdx + 1; i < len(grid); i++ {
		row := grid[i]
		text := rowText(row)
		if text == "" || containsAny(text, cashFlowTerminators) {
			break
		}
		if code, ok := currencyGroup(row); ok {
			groupCurrency = code
			continue
		}
		stats.TotalRows++

		op, reason := cashFlowRow(row, cols, groupCurrency, stats)
		if reason != "" {
			stats.Skip(reason)
			continue
		}
		ops = append(ops, op)
		stats.Parsed++
	}

	log.Info().Int("parsed", stats.Parsed).Int("rows", stats.TotalRows).Msg("cash-flow operations parsed")
	return ops, stats
}

// cashFlowRow converts one table row. groupCurrency applies when the row has
// no currency of its own. A non-empty reason means the row was dropped and
// names the counter it belongs to.
func cashFlowRow(row models.Row, cols HeaderMap, groupCurrency string, stats *models.ParseStats) (models.OperationRecord, string) {
	date, ok := toDate(cols.Cell(row, ColDate))
	if !ok {
		return models.OperationRecord{}, models.SkipNoDate
	}

	name := strings.TrimSpace(cols.Cell(row, ColType).String())
	if name == "" {
		return models.OperationRecord{}, models.SkipNoName
	}

	amount := cashFlowAmount(row, cols)
	typ, fellBack, class := classify(name, amount)
	if fellBack && !isValidOperation(name) {
		stats.Unrecognized(name)
	}
	switch class {
	case classSkipped:
		return models.OperationRecord{}, models.SkipSkiplist
	case classZeroUnknown:
		return models.OperationRecord{}, models.SkipZeroUnknown
	}
	if typ == models.OpCoupon && amount.Sign() <= 0 {
		return models.OperationRecord{}, models.SkipCouponNonPositive
	}

	comment := strings.TrimSpace(cols.Cell(row, ColComment).String())
	isin := strings.ToUpper(strings.TrimSpace(cols.Cell(row, ColISIN).String()))
	reg := strings.TrimSpace(cols.Cell(row, ColRegNumber).String())
	if isin == "" || reg == "" {
		commentISIN, commentReg := extractIdentifiers(comment)
		if isin == "" {
			isin = commentISIN
		}
		if reg == "" {
			reg = commentReg
		}
	}

	commission := decimal.Zero
	if typ == models.OpDividend {
		commission = dividendWithholding(comment)
	}

	currency := normalizeCurrency(cols.Cell(row, ColCurrency).String())
	if currency == "" {
		currency = groupCurrency
	}

	return models.OperationRecord{
		Date:          date,
		OperationType: typ,
		PaymentSum:    amount,
		Currency:      currency,
		Ticker:        strings.TrimSpace(cols.Cell(row, ColTicker).String()),
		ISIN:          isin,
		RegNumber:     reg,
		Price:         decimalOrZero(cols.Cell(row, ColPrice)),
		Quantity:      toNonNegativeInt(cols.Cell(row, ColQuantity)),
		ACI:           decimalOrZero(cols.Cell(row, ColACI)),
		Comment:       comment,
		OperationID:   strings.TrimSpace(cols.Cell(row, ColOperationID).String()),
		Commission:    commission,
	}, ""
}

// cashFlowAmount reads the signed sum column, or derives it from split
// credit/debit columns when the template has no single sum.
func cashFlowAmount(row models.Row, cols HeaderMap) decimal.Decimal {
	if cols.Has(ColSum) {
		return decimalOrZero(cols.Cell(row, ColSum))
	}
	income := decimalOrZero(cols.Cell(row, ColIncome))
	expense := decimalOrZero(cols.Cell(row, ColExpense))
	return income.Sub(expense.Abs())
}

// dividendWithholding returns the tax named in a dividend comment, or zero.
func dividendWithholding(comment string) decimal.Decimal {
	m := withholdingPattern.FindStringSubmatch(comment)
	if m == nil {
		return decimal.Zero
	}
	tax, ok := parseAmount(m[1])
	if !ok {
		return decimal.Zero
	}
	return tax.Abs()
}
