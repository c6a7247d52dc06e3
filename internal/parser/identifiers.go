package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Security identifiers. RE2 word boundaries are ASCII-only, so Cyrillic-aware
// boundaries are spelled out as explicit non-alphanumeric guards.
var (
	isinPattern     = regexp.MustCompile(`(?i)(?:^|[^0-9A-ZА-ЯЁ])([A-Z]{2}[A-Z0-9]{9}[0-9])(?:$|[^0-9A-ZА-ЯЁ])`)
	regLongPattern  = regexp.MustCompile(`(?i)(?:^|[^0-9A-ZА-ЯЁ])([0-9A-ZА-ЯЁ]{1,6}[-/][0-9A-ZА-ЯЁ/-]{3,})`)
	regShortPattern = regexp.MustCompile(`(?i)(?:^|[^0-9A-ZА-ЯЁ])([КK][0-9]{3,8})(?:$|[^0-9A-ZА-ЯЁ])`)
	hasDigit        = regexp.MustCompile(`[0-9]`)

	instrumentSeparators = regexp.MustCompile(`[,\t;/]+`)
	tokenSeparators      = regexp.MustCompile(`[\s,;/]+`)
	tickerToken          = regexp.MustCompile(`^[A-Za-z0-9.\-]{1,8}$`)
)

// maxTickerRunes bounds the leading word of an instrument name taken as its
// ticker.
const maxTickerRunes = 8

// extractIdentifiers finds an ISIN and a state registration number in free
// text. The long registration form ("1-02-00028-A") is tried before the
// short "К12345" form; long candidates without digits are ignored.
func extractIdentifiers(text string) (isin, reg string) {
	if strings.TrimSpace(text) == "" {
		return "", ""
	}
	if m := isinPattern.FindStringSubmatch(text); m != nil {
		isin = strings.ToUpper(m[1])
	}
	for _, m := range regLongPattern.FindAllStringSubmatch(text, -1) {
		candidate := strings.Trim(m[1], ".,;/-")
		if hasDigit.MatchString(candidate) && !isDateLike(candidate) {
			reg = candidate
			break
		}
	}
	if reg == "" {
		if m := regShortPattern.FindStringSubmatch(text); m != nil {
			reg = m[1]
		}
	}
	return isin, reg
}

// isDateLike rejects slash dates such as 31/12/2023 picked up by the long form.
func isDateLike(s string) bool {
	_, ok := parseDateText(strings.ReplaceAll(s, "/", "."))
	return ok
}

// instrumentTicker derives a short ticker from an instrument cell such as
// "Сбербанк ао, 10301481B, RU0009029540". In a separated cell the first word
// is used when short enough, otherwise the first part that opens with a
// Latin code. An unseparated cell yields its first Latin code token.
func instrumentTicker(text string) string {
	var parts []string
	for _, p := range instrumentSeparators.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) >= 2 {
		first := strings.Fields(parts[0])[0]
		if utf8.RuneCountInString(first) <= maxTickerRunes {
			return first
		}
		for _, p := range parts {
			if tok := strings.Fields(p)[0]; tickerToken.MatchString(tok) {
				return tok
			}
		}
		return ""
	}
	for _, tok := range tokenSeparators.Split(strings.TrimSpace(text), -1) {
		if tickerToken.MatchString(tok) {
			return tok
		}
	}
	return ""
}
