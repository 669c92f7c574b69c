// Package toolcall recovers usable tool-call arguments from the raw text a
// model streamed.
//
// Models occasionally leak tokenizer markers into tool arguments and emit
// over-escaped or truncated JSON. Recovery is a fixed, ordered list of named
// strategies; the first one that yields a JSON object wins and the
// fallback is an empty object.
package toolcall

import "regexp"

// reToolMarker matches one leaked tool-call marker such as <|tool_call|>,
// <｜tool▁calls▁begin｜> or the full-width ＜｜tool...＞ variant.
var reToolMarker = regexp.MustCompile(`^[<＜][|｜]tool[^>＞]*[>＞]`)

// StripLeadingMarkers removes every tool-call marker at the start of s and
// keeps the remainder untouched.
func StripLeadingMarkers(s string) string {
	for {
		loc := reToolMarker.FindStringIndex(s)
		if loc == nil {
			return s
		}
		s = s[loc[1]:]
	}
}
