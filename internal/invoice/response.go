package invoice

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Parse tiers, in the order they are tried.
const (
	TierStrict  = "strict"
	TierFenced  = "fenced"
	TierBracket = "bracket"
	TierPairs   = "pairs"
)

type parseTier struct {
	name  string
	parse func(resp string) ([]LineItem, bool)
}

var lineItemTiers = []parseTier{
	{name: TierStrict, parse: parseStrict},
	{name: TierFenced, parse: parseFenced},
	{name: TierBracket, parse: parseBracketed},
	{name: TierPairs, parse: parsePairs},
}

// ParseLineItems recovers line items from a classifier response. It returns the items and the
// tier that succeeded, or "" when no tier could read the response. Items with an empty
// description or an implausible amount are dropped.
func ParseLineItems(resp string) ([]LineItem, string) {
	for _, t := range lineItemTiers {
		if items, ok := t.parse(resp); ok {
			return items, t.name
		}
	}
	return nil, ""
}

type wireItem struct {
	Description string     `json:"description"`
	Amount      wireAmount `json:"amount"`
}

// wireAmount accepts numbers and strings like "£1,200.00"; anything else is marked invalid
// instead of failing the whole array.
type wireAmount struct {
	value Money
	valid bool
}

func (a *wireAmount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	a.value, a.valid = ParseAmount(raw)
	return nil
}

func decodeItems(body string) ([]LineItem, bool) {
	var wire []wireItem
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return nil, false
	}
	items := make([]LineItem, 0, len(wire))
	for _, w := range wire {
		desc := strings.TrimSpace(w.Description)
		if desc == "" || !w.Amount.valid || !plausibleItemAmount(w.Amount.value) {
			continue
		}
		items = append(items, LineItem{Description: desc, Amount: w.Amount.value})
	}
	return items, true
}

func parseStrict(resp string) ([]LineItem, bool) {
	return decodeItems(strings.TrimSpace(resp))
}

func parseFenced(resp string) ([]LineItem, bool) {
	body, ok := stripFences(resp)
	if !ok {
		return nil, false
	}
	return decodeItems(body)
}

func parseBracketed(resp string) ([]LineItem, bool) {
	body, ok := firstBalanced(resp, '[', ']')
	if !ok {
		return nil, false
	}
	return decodeItems(body)
}

var pairPattern = regexp.MustCompile(`"description"\s*:\s*"([^"]+)"\s*,\s*"amount"\s*:\s*"?[£$€]?(\d[\d,]*\.?\d*)`)

func parsePairs(resp string) ([]LineItem, bool) {
	var items []LineItem
	for _, m := range pairPattern.FindAllStringSubmatch(resp, -1) {
		amount, ok := ParseAmount(m[2])
		desc := strings.TrimSpace(m[1])
		if !ok || desc == "" || !plausibleItemAmount(amount) {
			continue
		}
		items = append(items, LineItem{Description: desc, Amount: amount})
	}
	return items, len(items) > 0
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")

// stripFences returns the content of the first markdown code fence. An unterminated fence
// yields everything after the opening marker.
func stripFences(resp string) (string, bool) {
	if m := fencePattern.FindStringSubmatch(resp); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	idx := strings.Index(resp, "```")
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimPrefix(resp[idx+3:], "json")
	return strings.TrimSpace(rest), true
}

// firstBalanced returns the first open...close substring whose brackets balance, ignoring
// brackets inside JSON strings.
func firstBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// jsonCandidates lists the bodies the tiers would try, strict first.
func jsonCandidates(resp string) []string {
	out := []string{strings.TrimSpace(resp)}
	if body, ok := stripFences(resp); ok {
		out = append(out, body)
	}
	if body, ok := firstBalanced(resp, '[', ']'); ok {
		out = append(out, body)
	}
	return out
}
