package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numberPrefix is the leading numeric token of a field; trailing garbage ("1.2.3", "5abc") is ignored.
var numberPrefix = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)`)

var placeholders = map[string]struct{}{
	"":    {},
	"—":   {},
	"–":   {},
	"-":   {},
	"N/A": {},
	"n/a": {},
}

// capture returns the named group of the first match of re in s.
func capture(re *regexp.Regexp, s, group string) (string, bool) {
	idx := re.SubexpIndex(group)
	if idx < 0 {
		return "", false
	}
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[idx], true
}

// captureOr is capture with a default for a miss.
func captureOr(re *regexp.Regexp, s, group, def string) string {
	if v, ok := capture(re, s, group); ok && v != "" {
		return v
	}
	return def
}

// groups returns every named group of the first match of re in s, or nil.
func groups(re *regexp.Regexp, s string) map[string]string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" {
			out[name] = m[i]
		}
	}
	return out
}

// ParseNumber reads a decimal with optional thousands separators. It returns nil for anything that does
// not start with a number, and never NaN or Inf.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if _, ok := placeholders[s]; ok {
		return nil
	}
	tok := numberPrefix.FindString(s)
	if tok == "" {
		return nil
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParsePercent is ParseNumber for "1.5%", "-0.2 %" and friends. Dash placeholders yield nil.
func ParsePercent(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	return ParseNumber(s)
}

// spanUntil returns the text between the first occurrence of start and the nearest following end marker.
// At least minLen bytes must separate them; otherwise later occurrences of start are tried.
func spanUntil(s, start string, minLen int, ends ...string) (string, bool) {
	offset := 0
	for {
		i := strings.Index(s[offset:], start)
		if i < 0 {
			return "", false
		}
		from := offset + i + len(start)
		rest := s[from:]

		cut := -1
		if len(rest) >= minLen {
			for _, end := range ends {
				j := strings.Index(rest[minLen:], end)
				if j < 0 {
					continue
				}
				if j += minLen; cut < 0 || j < cut {
					cut = j
				}
			}
		}
		if cut >= 0 {
			return rest[:cut], true
		}
		offset = from
	}
}

// Sanitize strips the function-call marker the chat runtime leaves in tool text.
func Sanitize(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "<has_function_call>", ""))
}
