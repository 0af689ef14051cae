package sanitizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeIdentifier_RoundTrips(t *testing.T) {
	escaped, err := EscapeIdentifier("users")
	require.NoError(t, err)
	assert.Equal(t, `"users"`, escaped)
	unquoted := strings.Trim(escaped, `"`)
	assert.Equal(t, "users", unquoted)
}

func TestEscapeIdentifier_BoundaryLength(t *testing.T) {
	ok := strings.Repeat("a", 128)
	_, err := EscapeIdentifier(ok)
	require.NoError(t, err)

	tooLong := strings.Repeat("a", 129)
	_, err = EscapeIdentifier(tooLong)
	require.Error(t, err)
}

func TestEscapeIdentifier_Rejects(t *testing.T) {
	_, err := EscapeIdentifier("")
	require.Error(t, err)

	_, err = EscapeIdentifier("1abc")
	require.Error(t, err)

	_, err = EscapeIdentifier("abc def")
	require.Error(t, err)
}

func TestEscapeIdentifier_RejectsEmbeddedQuote(t *testing.T) {
	escaped, err := EscapeIdentifier(`weird_"col`)
	require.Error(t, err) // contains a char outside allowlist (")
	_ = escaped
}

func TestEscapeSQLValue_Injection(t *testing.T) {
	_, err := EscapeSQLValue("'; DROP TABLE users; --")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Suspicious SQL patterns")
}

func TestEscapeSQLValue_Basic(t *testing.T) {
	v, err := EscapeSQLValue("Alice")
	require.NoError(t, err)
	assert.Equal(t, "'Alice'", v)

	v, err = EscapeSQLValue(25)
	require.NoError(t, err)
	assert.Equal(t, "25", v)

	v, err = EscapeSQLValue(nil)
	require.NoError(t, err)
	assert.Equal(t, "NULL", v)
}

func TestEscapeSQLValue_QuoteDoubling(t *testing.T) {
	v, err := EscapeSQLValue("O'Brien")
	require.NoError(t, err)
	assert.Equal(t, "'O''Brien'", v)
}

func TestEscapeSQLValue_RejectsNUL(t *testing.T) {
	_, err := EscapeSQLValue("abc\x00def")
	require.Error(t, err)
}

func TestBuildParameterizedSQL_Example(t *testing.T) {
	got, err := BuildParameterizedSQL("SELECT * FROM users WHERE name = ? AND age > ?", []any{"Alice", 25})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE name = 'Alice' AND age > 25", got)
}

func TestBuildParameterizedSQL_SingleParamMatchesDirectEscape(t *testing.T) {
	v := "hello"
	built, err := BuildParameterizedSQL("SELECT ?", []any{v})
	require.NoError(t, err)
	escaped, err := EscapeSQLValue(v)
	require.NoError(t, err)
	assert.Equal(t, "SELECT "+escaped, built)
}

func TestBuildParameterizedSQL_IgnoresQuotedQuestionMarks(t *testing.T) {
	got, err := BuildParameterizedSQL(`SELECT '?' AS literal, ? AS bound`, []any{42})
	require.NoError(t, err)
	assert.Equal(t, `SELECT '?' AS literal, 42 AS bound`, got)
}

func TestBuildParameterizedSQL_TooFewParams(t *testing.T) {
	_, err := BuildParameterizedSQL("SELECT ?, ?", []any{1})
	require.Error(t, err)
}

func TestBuildParameterizedSQL_TooManyParams(t *testing.T) {
	_, err := BuildParameterizedSQL("SELECT ?", []any{1, 2})
	require.Error(t, err)
}

func TestBuildParameterizedSQL_DoubledQuoteEscapeInTemplate(t *testing.T) {
	got, err := BuildParameterizedSQL(`SELECT 'it''s ?' , ?`, []any{7})
	require.NoError(t, err)
	assert.Equal(t, `SELECT 'it''s ?' , 7`, got)
}
