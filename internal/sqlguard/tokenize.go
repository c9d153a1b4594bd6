package sqlguard

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenSymbol
	tokenSeparator
	tokenLiteral
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits sqlText into words, symbols and statement separators.
// Comments are dropped; string literals and quoted identifiers collapse into
// single opaque tokens so keywords inside them never count. Backticks and
// brackets are not quotes in PostgreSQL or DuckDB and stay plain symbols.
func tokenize(sqlText string) ([]token, error) {
	tokens := make([]token, 0, 32)
	runes := []rune(sqlText)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case isSpace(r):
			i++
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := indexFrom(runes, i+2, "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment")
			}
			i = end + 2
		case r == '\'' || r == '"':
			end, err := closeQuote(runes, i, r, false)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenLiteral, text: string(runes[i : end+1])})
			i = end + 1
		case r == '$' && dollarTag(runes, i) != "":
			tag := dollarTag(runes, i)
			end := indexFrom(runes, i+len([]rune(tag)), tag)
			if end < 0 {
				return nil, fmt.Errorf("unterminated dollar-quoted text")
			}
			next := end + len([]rune(tag))
			tokens = append(tokens, token{kind: tokenLiteral, text: string(runes[i:next])})
			i = next
		case r == ';':
			tokens = append(tokens, token{kind: tokenSeparator, text: ";"})
			i++
		case isWordStart(r):
			start := i
			for i < len(runes) && isWordPart(runes[i]) {
				i++
			}
			// E'...' strings treat a backslash as an escape character.
			if i-start == 1 && (r == 'E' || r == 'e') && i < len(runes) && runes[i] == '\'' {
				end, err := closeQuote(runes, i, '\'', true)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, token{kind: tokenLiteral, text: string(runes[start : end+1])})
				i = end + 1
				continue
			}
			tokens = append(tokens, token{kind: tokenWord, text: string(runes[start:i])})
		default:
			tokens = append(tokens, token{kind: tokenSymbol, text: string(r)})
			i++
		}
	}
	return tokens, nil
}

// closeQuote returns the index of the quote closing the one at start. A
// doubled quote character is an escaped quote, and so is a backslash
// sequence when backslashEscapes is set.
func closeQuote(runes []rune, start int, quote rune, backslashEscapes bool) (int, error) {
	for i := start + 1; i < len(runes); i++ {
		if backslashEscapes && runes[i] == '\\' {
			i++
			continue
		}
		if runes[i] != quote {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == quote {
			i++
			continue
		}
		return i, nil
	}
	return 0, fmt.Errorf("unterminated quoted text")
}

// dollarTag returns the opening delimiter of a dollar-quoted string starting
// at start, such as "$$" or "$body$", or "" when there is none. "$1" is a
// parameter, not a delimiter.
func dollarTag(runes []rune, start int) string {
	i := start + 1
	if i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
		return ""
	}
	for i < len(runes) && runes[i] != '$' {
		if !isWordStart(runes[i]) && !(runes[i] >= '0' && runes[i] <= '9') {
			return ""
		}
		i++
	}
	if i >= len(runes) {
		return ""
	}
	return string(runes[start : i+1])
}

func indexFrom(runes []rune, start int, needle string) int {
	if start > len(runes) {
		return -1
	}
	offset := strings.Index(string(runes[start:]), needle)
	if offset < 0 {
		return -1
	}
	return start + len([]rune(string(runes[start:])[:offset]))
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
}

func isWordStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127
}

func isWordPart(r rune) bool {
	return isWordStart(r) || (r >= '0' && r <= '9') || r == '$'
}
