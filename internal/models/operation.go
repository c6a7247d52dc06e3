package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OperationType is the canonical tag of a cash-flow or trade record.
type OperationType string

const (
	OpDeposit          OperationType = "deposit"
	OpWithdrawal       OperationType = "withdrawal"
	OpCoupon           OperationType = "coupon"
	OpDividend         OperationType = "dividend"
	OpRepayment        OperationType = "repayment"
	OpAmortization     OperationType = "amortization"
	OpCommission       OperationType = "commission"
	OpCommissionRefund OperationType = "commission_refund"
	OpTransfer         OperationType = "transfer"
	OpInterest         OperationType = "interest"
	OpTaxWithholding   OperationType = "withholding"
	OpTaxRefund        OperationType = "refund"
	OpBuy              OperationType = "buy"
	OpSale             OperationType = "sale"
)

// BrokerType represents supported statement formats.
type BrokerType string

const (
	BrokerVTB BrokerType = "vtb"
)

// Timestamp is a record date that remembers whether the source carried a
// time of day. It serializes as YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS.
type Timestamp struct {
	time.Time
	HasClock bool
}

// ISO returns the ISO-8601 form used in JSON output and dedup keys.
func (t Timestamp) ISO() string {
	if t.IsZero() {
		return ""
	}
	if t.HasClock {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format("2006-01-02")
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.ISO())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = Timestamp{}
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimestamp reads the ISO form produced by Timestamp.ISO. An empty
// string yields the zero Timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Timestamp{}, nil
	}
	if parsed, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return Timestamp{Time: parsed, HasClock: true}, nil
	}
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{Time: parsed}, nil
}

// OperationRecord is a single normalized cash-flow operation or trade.
type OperationRecord struct {
	Date          Timestamp       `json:"date"`
	OperationType OperationType   `json:"operation_type"`
	PaymentSum    decimal.Decimal `json:"payment_sum"`
	Currency      string          `json:"currency"`
	Ticker        string          `json:"ticker"`
	ISIN          string          `json:"isin"`
	RegNumber     string          `json:"reg_number"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int64           `json:"quantity"`
	ACI           decimal.Decimal `json:"aci"`
	Comment       string          `json:"comment"`
	OperationID   string          `json:"operation_id"`
	Commission    decimal.Decimal `json:"commission"`
}

// StatementHeader holds account metadata found at the top of the statement.
type StatementHeader struct {
	AccountID        string `json:"account_id"`
	AccountDateStart string `json:"account_date_start"`
	DateStart        string `json:"date_start"`
	DateEnd          string `json:"date_end"`
}

// Skip reasons recorded in ParseStats.Skipped.
const (
	SkipNoDate            = "skipped_no_date"
	SkipNoName            = "skipped_no_name"
	SkipSkiplist          = "skipped_skiplist"
	SkipZeroUnknown       = "skipped_zero_unknown"
	SkipCouponNonPositive = "skipped_coupon_nonpositive"
	SkipUnknownSide       = "skipped_unknown_side"
	SkipZeroQuantity      = "skipped_zero_quantity"
	SkipInstrumentRow     = "skipped_instrument_row"
	SkipTotalRow          = "skipped_total_row"
)

// ParseStats accounts for every row a section parser looked at.
// TotalRows always equals Parsed plus the sum of Skipped.
type ParseStats struct {
	SectionFound      bool           `json:"section_found"`
	HeaderFound       bool           `json:"header_found"`
	TotalRows         int            `json:"total_rows"`
	Parsed            int            `json:"parsed"`
	Skipped           map[string]int `json:"skipped"`
	UnrecognizedNames []string       `json:"unrecognized_names"`
}

// NewParseStats returns zeroed stats ready for counting.
func NewParseStats() *ParseStats {
	return &ParseStats{
		Skipped:           map[string]int{},
		UnrecognizedNames: []string{},
	}
}

// Skip records a dropped row under reason.
func (s *ParseStats) Skip(reason string) {
	s.Skipped[reason]++
}

// SkippedTotal sums all skip counters.
func (s *ParseStats) SkippedTotal() int {
	n := 0
	for _, v := range s.Skipped {
		n += v
	}
	return n
}

// Unrecognized appends name once, keeping first-seen order.
func (s *ParseStats) Unrecognized(name string) {
	for _, existing := range s.UnrecognizedNames {
		if existing == name {
			return
		}
	}
	s.UnrecognizedNames = append(s.UnrecognizedNames, name)
}

// StatementMeta carries counts and diagnostics for a full statement parse.
type StatementMeta struct {
	FinOpsRawCount    int         `json:"fin_ops_raw_count"`
	TradeOpsRawCount  int         `json:"trade_ops_raw_count"`
	FinOpsKept        int         `json:"fin_ops_kept"`
	TradeOpsKept      int         `json:"trade_ops_kept"`
	TotalOpsCount     int         `json:"total_ops_count"`
	FinStats          *ParseStats `json:"fin_stats"`
	TradeStats        *ParseStats `json:"trade_stats"`
	UnrecognizedNames []string    `json:"unrecognized_names"`
}

// StatementResult is the assembled output of one statement file.
type StatementResult struct {
	Broker BrokerType `json:"broker,omitempty"`
	StatementHeader
	Operations []OperationRecord `json:"operations"`
	Meta       StatementMeta     `json:"meta"`
}
