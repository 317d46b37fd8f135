package query

import (
	"regexp"
	"strings"
)

// compileRegex builds a Go regexp from a pattern and the supported flag
// set "imxs". The i, m and s flags map directly onto RE2 inline flags; x
// (extended mode) has no RE2 equivalent, so unescaped whitespace and
// #-comments are stripped from the pattern first.
func compileRegex(pattern, flags string) (*regexp.Regexp, error) {
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'x':
			pattern = stripExtended(pattern)
		default:
			return nil, NewInvalidQuery("unsupported regex flag %q", string(f))
		}
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, NewInvalidQuery("invalid regex: %v", err)
	}
	return re, nil
}

// stripExtended removes the whitespace and comments that extended mode
// ignores. Escaped characters and character classes are preserved intact.
func stripExtended(pattern string) string {
	var out strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			out.WriteByte(c)
			out.WriteByte(pattern[i+1])
			i++
		case c == '[':
			inClass = true
			out.WriteByte(c)
		case c == ']':
			inClass = false
			out.WriteByte(c)
		case inClass:
			out.WriteByte(c)
		case c == '#':
			for i < len(pattern) && pattern[i] != '\n' {
				i++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			// Ignored outside character classes.
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// StartsWithPattern converts a starts-with regex into its ContainsAll
// marker form. Only the shape quotedPrefix accepts qualifies.
func StartsWithPattern(pattern string) (StartsWith, bool) {
	prefix, ok := quotedPrefix(pattern)
	if !ok {
		return StartsWith{}, false
	}
	return StartsWith{Prefix: prefix}, true
}

// quotedPrefix extracts the literal prefix of a starts-with pattern of the
// form ^\Qprefix\E, the only regex shape the batch form of ContainsAll
// accepts. Returns false for anything else.
func quotedPrefix(pattern string) (string, bool) {
	rest, ok := strings.CutPrefix(pattern, `^\Q`)
	if !ok {
		return "", false
	}
	// An unterminated \Q quotes to the end of the pattern; anything after
	// a terminating \E disqualifies the batch form.
	prefix, tail, found := strings.Cut(rest, `\E`)
	if found && tail != "" {
		return "", false
	}
	return prefix, true
}
