package db2i

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyStatement is returned for blank or comment-only SQL.
	ErrEmptyStatement = errors.New("empty SQL statement")

	// ErrNotReadOnly is returned when a statement is not a query.
	ErrNotReadOnly = errors.New("Only SELECT statements are allowed")

	// ErrMultipleStatements is returned when SQL contains more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements are not allowed")
)

var readOnlyLeaders = map[string]bool{
	"SELECT": true,
	"WITH":   true,
	"VALUES": true,
}

var dataChangeKeywords = map[string]bool{
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"MERGE":  true,
}

// Guard admits read-only queries. It strips surrounding whitespace and a
// single trailing semicolon and returns the cleaned statement. Comments,
// string literals and delimited identifiers are skipped while looking for
// keywords, so leading comments cannot hide a data-change statement.
// Data-change keywords are rejected at any nesting depth, which covers
// FINAL TABLE, NEW TABLE and OLD TABLE references inside a query.
func Guard(stmt string) (string, error) {
	cleaned := strings.TrimSpace(stmt)
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, ";"))

	words, err := scanWords(cleaned)
	if err != nil {
		return "", err
	}
	if len(words) == 0 {
		return "", ErrEmptyStatement
	}

	if !readOnlyLeaders[words[0]] {
		return "", ErrNotReadOnly
	}
	for i := 1; i < len(words); i++ {
		if !dataChangeKeywords[words[i]] {
			continue
		}
		// SELECT ... FOR UPDATE is still a query.
		if words[i] == "UPDATE" && words[i-1] == "FOR" {
			continue
		}
		return "", ErrNotReadOnly
	}
	return cleaned, nil
}

// scanWords returns the upper-cased keywords and identifiers of s outside
// comments and literals.
func scanWords(s string) ([]string, error) {
	var words []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				return words, nil
			}
			i += end + 1
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return words, nil
			}
			i += end + 4
		case c == '\'' || c == '"':
			i = skipQuoted(s, i, c)
		case c == ';':
			return nil, ErrMultipleStatements
		case isWordStart(c):
			start := i
			for i < len(s) && isWordPart(s[i]) {
				i++
			}
			words = append(words, strings.ToUpper(s[start:i]))
		default:
			i++
		}
	}
	return words, nil
}

// skipQuoted returns the index after the literal opened at s[i]; a doubled
// quote is an escape.
func skipQuoted(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != quote {
			continue
		}
		if j+1 < len(s) && s[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$' || c == '#' || c == '@'
}
