package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	reFencedBlock = regexp.MustCompile("(?s)^\\s*```[\\w-]*[ \\t]*\\n?(.*?)\\n?\\s*```\\s*$")
	reCallExpr    = regexp.MustCompile(`(?s)^\s*[A-Za-z_][\w.\-]*\s*\((.*)\)\s*;?\s*$`)
	reTrimmedKey  = regexp.MustCompile(`^[A-Za-z_][\w\-]*"\s*:`)
)

const (
	doubleEscapedQuote = `\\"`
	singleEscapedQuote = `\"`
)

// Strategy is one named recovery heuristic. Apply receives the normalized
// argument string and reports whether it produced a JSON object.
type Strategy struct {
	Name  string
	Apply func(s string) (map[string]any, bool)
}

// Strategies run in order after normalization. Each is exported through
// this table so it can be tested on its own.
var Strategies = []Strategy{
	{Name: "well_formed", Apply: parseObject},
	{Name: "double_escaped", Apply: recoverDoubleEscaped},
	{Name: "single_escaped", Apply: recoverSingleEscaped},
	{Name: "trailing_quote", Apply: recoverTrailingQuote},
	{Name: "bare_members", Apply: recoverBareMembers},
}

// Recover returns the best-effort argument object for raw. Unusable input
// yields an empty, non-nil map.
func Recover(raw string) map[string]any {
	args, _ := RecoverWithStrategy(raw)
	return args
}

// RecoverWithStrategy is Recover that also names the strategy that
// succeeded. The name is empty when the empty-object fallback was used.
func RecoverWithStrategy(raw string) (map[string]any, string) {
	s := Normalize(raw)
	if s == "" {
		return map[string]any{}, ""
	}
	for _, st := range Strategies {
		if args, ok := st.Apply(s); ok {
			return args, st.Name
		}
	}
	return map[string]any{}, ""
}

// Normalize strips leaked markers and a fenced code-block wrapper, reduces
// a call expression such as fn({...}) to its arguments, unwraps a
// JSON-encoded string and trims a leading run of quotes and whitespace.
func Normalize(raw string) string {
	s := StripLeadingMarkers(strings.TrimSpace(raw))
	if m := reFencedBlock.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if m := reCallExpr.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.TrimSpace(s)

	var inner string
	if strings.HasPrefix(s, `"`) && json.Unmarshal([]byte(s), &inner) == nil {
		s = strings.TrimSpace(inner)
	}
	return strings.TrimLeft(s, "\"' \t\r\n")
}

func parseObject(s string) (map[string]any, bool) {
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil || args == nil {
		return nil, false
	}
	return args, true
}

// recoverDoubleEscaped handles payloads escaped twice, e.g.
// {\\"city\\": \\"Paris\\"}"}. Escaping is collapsed to none, then stray
// trailing quotes and braces are dropped one at a time until it parses.
func recoverDoubleEscaped(s string) (map[string]any, bool) {
	if !strings.Contains(s, doubleEscapedQuote) {
		return nil, false
	}
	s = strings.ReplaceAll(s, doubleEscapedQuote, singleEscapedQuote)
	s = strings.ReplaceAll(s, singleEscapedQuote, `"`)
	for s != "" {
		if args, ok := parseObject(s); ok {
			return args, true
		}
		last := s[len(s)-1]
		if last != '"' && last != '}' {
			return nil, false
		}
		s = s[:len(s)-1]
	}
	return nil, false
}

// recoverSingleEscaped handles {\"a\": \"b\"}"} where the object was
// escaped once and a duplicated "} closer trails it.
func recoverSingleEscaped(s string) (map[string]any, bool) {
	if !strings.Contains(s, singleEscapedQuote) || !strings.HasSuffix(s, `"}`) {
		return nil, false
	}
	for {
		if args, ok := parseObject(strings.ReplaceAll(s, singleEscapedQuote, `"`)); ok {
			return args, true
		}
		if !strings.HasSuffix(s, `"}`) {
			return nil, false
		}
		s = strings.TrimSuffix(s, `"}`)
	}
}

// recoverTrailingQuote handles payloads ending in "}. It retries without
// the final character, then without the stray quote before the closing
// brace, then without the whole duplicated "} closer.
func recoverTrailingQuote(s string) (map[string]any, bool) {
	if !strings.HasSuffix(s, `"}`) {
		return nil, false
	}
	candidates := []string{
		s[:len(s)-1],
		s[:len(s)-2] + "}",
		strings.TrimSuffix(s, `"}`),
	}
	for _, c := range candidates {
		if args, ok := parseObject(c); ok {
			return args, true
		}
	}
	return nil, false
}

// recoverBareMembers wraps a member list such as "city": "Paris" that lost
// its enclosing braces. Normalization has already dropped the first key's
// opening quote.
func recoverBareMembers(s string) (map[string]any, bool) {
	if !reTrimmedKey.MatchString(s) {
		return nil, false
	}
	return parseObject(`{"` + s + "}")
}
