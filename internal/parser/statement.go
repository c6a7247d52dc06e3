package parser

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/broker-statement-parser/internal/extractor"
	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

// fingerprintPlaces is the rounding applied to payment sums in dedup keys.
const fingerprintPlaces = 6

// VTBParser handles VTB broker back-office reports (.xls/.xlsx).
//
// The worksheet is free-form: the cash-flow table follows a
// "Движение денежных средств" title and the trades table follows
// "Заключенные в отчетном периоде сделки с ценными бумагами". Each section
// is located and parsed independently over the same grid.
type VTBParser struct {
	Log zerolog.Logger
}

func (p *VTBParser) BrokerName() string {
	return "VTB"
}

// Parse runs header extraction, the cash-flow and trade parsers, and merges
// their records.
func (p *VTBParser) Parse(grid models.Grid) (*models.StatementResult, error) {
	header := parseStatementHeader(grid)
	finOps, finStats := parseCashFlow(grid, p.Log)
	tradeOps, tradeStats := parseTrades(grid, p.Log)

	result := Assemble(header, finOps, finStats, tradeOps, tradeStats)
	result.Broker = models.BrokerVTB

	p.Log.Info().
		Str("account_id", header.AccountID).
		Int("operations", len(result.Operations)).
		Int("fin_ops", len(finOps)).
		Int("trade_ops", len(tradeOps)).
		Strs("unrecognized", result.Meta.UnrecognizedNames).
		Msg("statement parsed")
	return result, nil
}

// Assemble concatenates cash-flow and trade records, drops duplicates and
// fills in the meta counters. Financial records come first; each group keeps
// its own order.
func Assemble(header models.StatementHeader, finOps []models.OperationRecord, finStats *models.ParseStats, tradeOps []models.OperationRecord, tradeStats *models.ParseStats) *models.StatementResult {
	seen := make(map[string]struct{}, len(finOps)+len(tradeOps))
	ops := make([]models.OperationRecord, 0, len(finOps)+len(tradeOps))

	keep := func(group []models.OperationRecord) int {
		kept := 0
		for _, op := range group {
			key := dedupKey(op)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			ops = append(ops, op)
			kept++
		}
		return kept
	}
	finKept := keep(finOps)
	tradeKept := keep(tradeOps)

	if finStats == nil {
		finStats = models.NewParseStats()
	}
	if tradeStats == nil {
		tradeStats = models.NewParseStats()
	}

	return &models.StatementResult{
		StatementHeader: header,
		Operations:      ops,
		Meta: models.StatementMeta{
			FinOpsRawCount:    len(finOps),
			TradeOpsRawCount:  len(tradeOps),
			FinOpsKept:        finKept,
			TradeOpsKept:      tradeKept,
			TotalOpsCount:     len(ops),
			FinStats:          finStats,
			TradeStats:        tradeStats,
			UnrecognizedNames: finStats.UnrecognizedNames,
		},
	}
}

// dedupKey identifies a record by its operation id, or by a fingerprint of
// date, type, rounded sum, ticker and ISIN when the sheet has no id.
func dedupKey(op models.OperationRecord) string {
	if op.OperationID != "" {
		return "id\x00" + op.OperationID
	}
	return fmt.Sprintf("fp\x00%s\x00%s\x00%s\x00%s\x00%s",
		op.Date.ISO(), op.OperationType, op.PaymentSum.Round(fingerprintPlaces).String(), op.Ticker, op.ISIN)
}

// ParseFullStatement reads the file at path and parses it with the parser
// for broker. An empty broker is auto-detected from the sheet.
func ParseFullStatement(path string, broker models.BrokerType, log zerolog.Logger) (*models.StatementResult, error) {
	grid, err := extractor.ReadGrid(path)
	if err != nil {
		return nil, err
	}
	return ParseGrid(grid, broker, log)
}

// ParseGrid is ParseFullStatement for an already decoded grid.
func ParseGrid(grid models.Grid, broker models.BrokerType, log zerolog.Logger) (*models.StatementResult, error) {
	if broker == "" {
		detected, err := AutoDetect(grid)
		if err != nil {
			// Not fatal: the result simply carries two empty sections.
			log.Warn().Err(err).Msg("statement format not detected, assuming VTB")
			detected = models.BrokerVTB
		}
		broker = detected
	}
	p, err := New(broker, log)
	if err != nil {
		return nil, err
	}
	return p.Parse(grid)
}
