package parser

import (
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

// validOperations are cash-flow names the statement is known to carry.
// A valid name that falls through to the sign fallback is not reported as
// unrecognized.
var validOperations = normSet(
	"Вознаграждение компании",
	"Вознаграждение Брокера",
	"Вознаграждение сторонних организаций",
	"Дивиденды",
	"Купонный доход",
	"Куп. дох.",
	"Погашение облигации",
	"Погашение ценных бумаг",
	"Приход ДС",
	"Зачисление денежных средств",
	"Перевод денежных средств",
	`Проценты по займам "овернайт"`,
	`Проценты по займам "овернайт ЦБ"`,
	"Частичное погашение облигации",
	"Вывод ДС",
	"НДФЛ",
)

// skipOperations never produce a record: settlement legs of trades, balance
// lines and FX-only entries. Matched exactly or as a substring.
var skipOperations = normList(
	"Внебиржевая сделка FX (22*)",
	`Займы "овернайт"`,
	"НКД от операций",
	"Покупка/Продажа",
	"Покупка/Продажа (репо)",
	"Переводы между площадками",
	"Перераспределение дохода между субсчетами / торговыми площадками",
	"Сальдо расчётов по сделкам с ценными бумагами",
	"Иные неторговые операции",
)

type typeMapping struct {
	name string
	typ  models.OperationType
}

// operationTypes is searched exactly first, then by substring in this order,
// so longer names that contain shorter ones come first.
var operationTypes = []typeMapping{
	{normText("Частичное погашение облигации"), models.OpAmortization},
	{normText("Погашение облигаций"), models.OpRepayment},
	{normText("Погашение облигации"), models.OpRepayment},
	{normText("Погашение ценных бумаг"), models.OpRepayment},
	{normText("Купонный доход"), models.OpCoupon},
	{normText("Куп. дох."), models.OpCoupon},
	{normText("Дивиденды"), models.OpDividend},
	{normText("Зачисление денежных средств"), models.OpDeposit},
	{normText("Списание денежных средств"), models.OpWithdrawal},
	{normText("Перевод денежных средств"), models.OpTransfer},
	{normText("Вознаграждение Брокера"), models.OpCommission},
	{normText("Вознаграждение сторонних организаций"), models.OpCommission},
	{normText("Проценты по займам"), models.OpInterest},
	{normText("Приход ДС"), models.OpDeposit},
	{normText("Вывод ДС"), models.OpWithdrawal},
}

// specialKind enumerates names whose direction depends on the amount sign.
type specialKind int

const (
	specialCompanyFee specialKind = iota + 1
	specialIncomeTax
)

var specialOperations = []struct {
	name string
	kind specialKind
}{
	{normText("Вознаграждение компании"), specialCompanyFee},
	{normText("НДФЛ"), specialIncomeTax},
}

// resolve maps the amount sign to a tag. Positive amounts are money coming
// back to the client.
func (k specialKind) resolve(amount decimal.Decimal) models.OperationType {
	positive := amount.Sign() > 0
	switch k {
	case specialCompanyFee:
		if positive {
			return models.OpCommissionRefund
		}
		return models.OpCommission
	case specialIncomeTax:
		if positive {
			return models.OpTaxRefund
		}
		return models.OpTaxWithholding
	}
	return ""
}

// classification is the outcome of running a name through the taxonomy.
type classification int

const (
	classified classification = iota
	classSkipped
	classZeroUnknown
)

// classify resolves a cash-flow operation name and amount into a canonical
// type. Precedence: skip list, sign-dependent names, exact map entry,
// substring map entry, then the amount sign alone. The returned fellBack
// flag reports that only the sign decided (or failed to decide) the type.
func classify(name string, amount decimal.Decimal) (typ models.OperationType, fellBack bool, class classification) {
	n := normText(name)

	for _, skip := range skipOperations {
		if n == skip || contains(n, skip) {
			return "", false, classSkipped
		}
	}

	if t, ok := resolveSpecial(n, amount); ok {
		return t, false, classified
	}

	for _, m := range operationTypes {
		if n == m.name {
			return m.typ, false, classified
		}
	}
	for _, m := range operationTypes {
		if contains(n, m.name) {
			return m.typ, false, classified
		}
	}

	switch amount.Sign() {
	case 1:
		return models.OpDeposit, true, classified
	case -1:
		return models.OpWithdrawal, true, classified
	}
	return "", true, classZeroUnknown
}

// resolveSpecial returns the sign-disambiguated type for names such as
// "Вознаграждение компании" or "НДФЛ", matched by substring.
func resolveSpecial(name string, amount decimal.Decimal) (models.OperationType, bool) {
	n := normText(name)
	for _, sp := range specialOperations {
		if contains(n, sp.name) {
			return sp.kind.resolve(amount), true
		}
	}
	return "", false
}

// isValidOperation reports whether name is a known cash-flow operation.
func isValidOperation(name string) bool {
	_, ok := validOperations[normText(name)]
	return ok
}

func normSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[normText(n)] = struct{}{}
	}
	return set
}

func normList(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = normText(n)
	}
	return out
}
