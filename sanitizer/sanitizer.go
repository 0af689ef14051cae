// Package sanitizer implements pure escaping and parameterized-SQL
// building rules. The engine bindings used here have no bind API on the
// Arrow execution path, so this package is defense in depth: a tight
// allowlist for identifiers and a denylist for the common injection
// shapes in string literals.
package sanitizer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pondpilot/pondpilot-sub000/engineerr"
)

const maxIdentifierLength = 128

// maxStatementLength is the boundary rule for raw SQL statement text:
// anything over 10MB is rejected before it ever reaches the engine.
const maxStatementLength = 10_000_000

var identifierAllowed = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateStatement checks the statement-text boundary rules: length over
// 10MB and embedded NUL bytes are rejected outright,
// independent of whether the statement carries any '?' parameters. Every
// engine entry point that accepts raw SQL text must call this before the
// statement reaches the classifier or the pool.
func ValidateStatement(sql string) error {
	if len(sql) > maxStatementLength {
		return &engineerr.InvalidQuery{Message: fmt.Sprintf("SQL statement exceeds maximum length of %d bytes", maxStatementLength)}
	}
	if strings.ContainsRune(sql, 0) {
		return &engineerr.InvalidQuery{Message: "SQL statement contains NUL bytes"}
	}
	return nil
}

// EscapeIdentifier double-quotes name, doubling any embedded double quote.
// It rejects empty names, names over 128 bytes, names not starting with a
// letter or underscore, and names containing characters outside
// [A-Za-z0-9_-]. SQL keywords are permitted; they are simply force-quoted.
func EscapeIdentifier(name string) (string, error) {
	if name == "" {
		return "", &engineerr.InvalidQuery{Message: "identifier must not be empty"}
	}
	if len(name) > maxIdentifierLength {
		return "", &engineerr.InvalidQuery{Message: fmt.Sprintf("identifier exceeds %d bytes", maxIdentifierLength)}
	}
	first := name[0]
	if !(first == '_' || (first >= 'A' && first <= 'Z') || (first >= 'a' && first <= 'z')) {
		return "", &engineerr.InvalidQuery{Message: "identifier must start with a letter or underscore"}
	}
	if !identifierAllowed.MatchString(name) {
		return "", &engineerr.InvalidQuery{Message: "identifier contains disallowed characters"}
	}

	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`, nil
}

var destructiveVerbAfterSemicolon = regexp.MustCompile(`(?i);\s*(drop|delete|update|insert|create|alter|exec|execute)\b`)

// EscapeSQLValue renders v as a single-quoted SQL literal, doubling any
// embedded single quote. It rejects NUL bytes, comment markers, and a
// semicolon followed by a destructive verb.
func EscapeSQLValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return escapeFloat(float64(val))
	case float64:
		return escapeFloat(val)
	case string:
		return escapeString(val)
	default:
		return escapeString(fmt.Sprintf("%v", val))
	}
}

func escapeFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &engineerr.InvalidQuery{Message: "numeric value must be finite"}
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

func escapeString(s string) (string, error) {
	if strings.ContainsRune(s, 0) {
		return "", &engineerr.InvalidQuery{Message: "value contains a NUL byte"}
	}
	if strings.Contains(s, "--") || strings.Contains(s, "/*") || strings.Contains(s, "*/") {
		return "", &engineerr.InvalidQuery{Message: "Suspicious SQL patterns detected in value"}
	}
	if destructiveVerbAfterSemicolon.MatchString(s) {
		return "", &engineerr.InvalidQuery{Message: "Suspicious SQL patterns detected in value"}
	}

	escaped := strings.ReplaceAll(s, "'", "''")
	return "'" + escaped + "'", nil
}

// BuildParameterizedSQL scans template, tracking single/double-quoted
// string state (honouring doubled-quote escapes), and replaces each
// unquoted '?' with the escaped value at the next parameter index. It
// fails if the number of '?' placeholders does not match len(params).
func BuildParameterizedSQL(template string, params []any) (string, error) {
	var b strings.Builder
	var inSingle, inDouble bool
	paramIdx := 0

	runes := []rune(template)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case inSingle:
			b.WriteRune(r)
			if r == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					b.WriteRune(runes[i+1])
					i++
					continue
				}
				inSingle = false
			}
		case inDouble:
			b.WriteRune(r)
			if r == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					b.WriteRune(runes[i+1])
					i++
					continue
				}
				inDouble = false
			}
		case r == '\'':
			inSingle = true
			b.WriteRune(r)
		case r == '"':
			inDouble = true
			b.WriteRune(r)
		case r == '?':
			if paramIdx >= len(params) {
				return "", &engineerr.InvalidQuery{Message: fmt.Sprintf("not enough parameters: expected at least %d, got %d", paramIdx+1, len(params))}
			}
			escaped, err := EscapeSQLValue(params[paramIdx])
			if err != nil {
				return "", err
			}
			b.WriteString(escaped)
			paramIdx++
		default:
			b.WriteRune(r)
		}
	}

	if paramIdx != len(params) {
		return "", &engineerr.InvalidQuery{Message: fmt.Sprintf("too many parameters: template uses %d, got %d", paramIdx, len(params))}
	}

	return b.String(), nil
}
