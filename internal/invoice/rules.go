package invoice

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// rule is one pattern in a field's priority list.
type rule struct {
	name  string
	match func(text string) (string, bool)
}

// ruleChain is evaluated in order; the first rule that matches wins.
type ruleChain []rule

func (c ruleChain) first(text string) (value string, ruleName string, ok bool) {
	for _, r := range c {
		if v, ok := r.match(text); ok {
			return v, r.name, true
		}
	}
	return "", "", false
}

// amountTail follows a label: separators, an optional currency marker and the number.
// The trailing group stops "20%" being read as an amount.
const amountTail = `[\s:]*(?:£|\$|€|gbp|usd|eur)?\s*(\d[\d,]*\.?\d{0,2})(?:[^\d%]|$)`

const dateValue = `(\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{2,4})`

const invoiceToken = `([A-Z0-9][A-Z0-9-]*)`

func patternRule(name, expr string) rule {
	re := regexp.MustCompile(expr)
	return rule{
		name: name,
		match: func(text string) (string, bool) {
			m := re.FindStringSubmatch(text)
			if m == nil {
				return "", false
			}
			return strings.TrimSpace(m[1]), true
		},
	}
}

// guardedRule returns the first match that accept allows. accept sees the full text and the
// submatch index slice so it can inspect surrounding context. After a rejection the scan resumes
// one byte past the rejected match's start, so a refused candidate never hides a later one. expr
// must not use anchors, since the scan runs on suffixes of the text.
func guardedRule(name, expr string, group int, accept func(text string, loc []int) bool) rule {
	re := regexp.MustCompile(expr)
	return rule{
		name: name,
		match: func(text string) (string, bool) {
			for pos := 0; pos < len(text); {
				loc := re.FindStringSubmatchIndex(text[pos:])
				if loc == nil {
					return "", false
				}
				for k := range loc {
					if loc[k] >= 0 {
						loc[k] += pos
					}
				}
				if loc[2*group] >= 0 && accept(text, loc) {
					return strings.TrimSpace(text[loc[2*group]:loc[2*group+1]]), true
				}
				_, size := utf8.DecodeRuneInString(text[loc[0]:])
				pos = loc[0] + size
			}
			return "", false
		},
	}
}

var invoiceNumberRules = ruleChain{
	patternRule("invoice-hash", `(?i)\binvoice\s*#[\s:]*`+invoiceToken),
	patternRule("invoice-number", `(?i)\binvoice\s+(?:number|no\b\.?)[\s:#]*`+invoiceToken),
	patternRule("inv-hash", `(?i)\binv\s*#[\s:]*`+invoiceToken),
	patternRule("inv-prefix", `(?i)\binv-[\s:]*`+invoiceToken),
}

// One alternation so the leftmost labelled date wins, whichever label it carries.
var dateRules = ruleChain{
	patternRule("date", `(?i)\b(?:invoice\s+date|dated|date)[\s:]*`+dateValue),
}

var subtotalRules = ruleChain{
	patternRule("subtotal", `(?i)\bsub[\s-]?total`+amountTail),
}

var taxRules = ruleChain{
	patternRule("tax-line", `(?im)^[ \t]*(?:vat|tax)(?:[ \t]*@?[ \t]*\(?\d{1,2}(?:\.\d+)?%\)?)?`+amountTail),
	{name: "vat-rate-window", match: vatRateWindow},
}

var totalRules = ruleChain{
	patternRule("total-explicit", `(?i)\b(?:grand\s+total|total\s+(?:amount|due|payable)(?:\s+(?:due|payable))?)`+amountTail),
	guardedRule("total-bare", `(?i)total\b([^\n\d£$€]{0,24}?)(?:£|\$|€)?\s*(\d[\d,]*\.?\d{0,2})`, 2, acceptBareTotal),
	patternRule("amount-due", `(?i)\bamount\s+due`+amountTail),
}

var balanceRules = ruleChain{
	patternRule("balance-due", `(?i)\bbalance\s+due`+amountTail),
	patternRule("balance", `(?i)\bbalance\b`+amountTail),
}

var paidRules = ruleChain{
	patternRule("paid", `(?i)\bpaid\b`+amountTail),
	patternRule("payment-received", `(?i)\bpayment\s+received`+amountTail),
}

var (
	vatRatePhrase = regexp.MustCompile(`(?i)\bvat\s+(?:at|@)\s*\d{1,2}(?:\.\d+)?\s*%`)
	nearbyTax     = regexp.MustCompile(`(?i)(?:£|\$|€)?\s*(\d[\d,]*\.\d{2})[ \t]*(?:vat|tax|total)`)
)

const vatWindow = 50

// vatRateWindow handles invoices that print "VAT at 20%" apart from the amount: it looks for an
// amount labelled vat/tax/total within a small window around each rate phrase.
func vatRateWindow(text string) (string, bool) {
	for _, loc := range vatRatePhrase.FindAllStringIndex(text, -1) {
		lo := loc[0] - vatWindow
		if lo < 0 {
			lo = 0
		}
		for lo > 0 && !utf8.RuneStart(text[lo]) {
			lo--
		}
		hi := loc[1] + vatWindow
		if hi > len(text) {
			hi = len(text)
		}
		for hi < len(text) && !utf8.RuneStart(text[hi]) {
			hi++
		}
		if m := nearbyTax.FindStringSubmatch(text[lo:hi]); m != nil {
			return m[1], true
		}
	}
	return "", false
}

var bareTotalFiller = map[string]bool{
	"gbp": true, "usd": true, "eur": true,
	"inc": true, "incl": true, "including": true,
	"due": true, "payable": true, "amount": true,
	"to": true, "pay": true, "now": true,
}

// acceptBareTotal rejects "Total VAT", "Sub total", "Subtotal" and labels such as "Total items".
// The label must start a word and the amount must not run into more digits or a percent sign.
func acceptBareTotal(text string, loc []int) bool {
	if prev, _ := utf8.DecodeLastRuneInString(text[:loc[0]]); loc[0] > 0 && (isWordRune(prev) || prev == '-') {
		return false
	}
	if next, _ := utf8.DecodeRuneInString(text[loc[5]:]); loc[5] < len(text) && (unicode.IsDigit(next) || next == '%') {
		return false
	}
	filler := strings.ToLower(text[loc[2]:loc[3]])
	if strings.Contains(filler, "vat") || strings.Contains(filler, "tax") {
		return false
	}
	words := strings.FieldsFunc(filler, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if !bareTotalFiller[w] {
			return false
		}
	}
	before := strings.ToLower(strings.TrimRight(text[:loc[0]], " \t-"))
	return !strings.HasSuffix(before, "sub")
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
