// Package sqlcheck screens generated SQL before it reaches the store and
// diagnoses store errors after execution. Validation is pure classification;
// a rejection is fed back into the next generation turn, never surfaced as a
// session failure.
package sqlcheck

import (
	"fmt"
	"strings"
)

// RejectionError explains why a statement was refused. The reason string is
// what the model sees on the next turn.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// forbiddenKeywords are refused as standalone tokens anywhere in the
// statement, which covers mutation hidden inside a CTE or subquery.
var forbiddenKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER",
	"TRUNCATE", "GRANT", "REVOKE", "CREATE",
}

// Validate accepts exactly one read-only statement: it must begin with
// SELECT or WITH after comments are stripped, carry no forbidden keyword,
// and contain no second statement. A nil return means accepted.
func Validate(sql string) error {
	stripped := stripComments(sql)
	blanked := blankStringLiterals(stripped)

	if strings.TrimSpace(blanked) == "" {
		return &RejectionError{Reason: "SQL must not be empty"}
	}

	if reason := checkSingleStatement(blanked); reason != "" {
		return &RejectionError{Reason: reason}
	}

	tokens := tokenize(blanked)
	if len(tokens) == 0 {
		return &RejectionError{Reason: "SQL must not be empty"}
	}

	head := strings.ToUpper(tokens[0])
	if head != "SELECT" && head != "WITH" {
		return &RejectionError{
			Reason: fmt.Sprintf("only SELECT queries (or WITH ... SELECT) are allowed, statement begins with %s", head),
		}
	}

	for _, tok := range tokens {
		upper := strings.ToUpper(tok)
		for _, kw := range forbiddenKeywords {
			if upper == kw {
				return &RejectionError{Reason: fmt.Sprintf("forbidden keyword detected: %s", kw)}
			}
		}
	}

	return nil
}

// checkSingleStatement returns a rejection reason when a semicolon separates
// two statements. A single trailing semicolon is fine.
func checkSingleStatement(sql string) string {
	parts := strings.Split(sql, ";")
	nonEmpty := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty++
		}
	}
	if nonEmpty > 1 {
		return "multiple SQL statements are not allowed"
	}
	return ""
}

// stripComments removes -- line comments and /* */ block comments. String
// literals are respected so a quoted "--" survives.
func stripComments(sql string) string {
	var sb strings.Builder
	inSingle := false
	inDouble := false
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case inSingle:
			sb.WriteByte(c)
			if c == '\'' {
				inSingle = false
			}
			i++
		case inDouble:
			sb.WriteByte(c)
			if c == '"' {
				inDouble = false
			}
			i++
		case c == '\'':
			inSingle = true
			sb.WriteByte(c)
			i++
		case c == '"':
			inDouble = true
			sb.WriteByte(c)
			i++
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i += 2
			for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			if i+1 < len(sql) {
				i += 2
			} else {
				i = len(sql)
			}
			sb.WriteByte(' ')
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// blankStringLiterals replaces quoted content with spaces so keyword and
// separator scans cannot be fooled by literals like 'DROP; TABLE'.
func blankStringLiterals(sql string) string {
	out := []byte(sql)
	inSingle := false
	inDouble := false
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			} else {
				out[i] = ' '
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			} else {
				out[i] = ' '
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		}
	}
	return string(out)
}

// tokenize splits on anything that is not part of an identifier.
func tokenize(sql string) []string {
	isWord := func(c byte) bool {
		return c == '_' ||
			(c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9')
	}
	var tokens []string
	start := -1
	for i := 0; i < len(sql); i++ {
		if isWord(sql[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, sql[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, sql[start:])
	}
	return tokens
}
