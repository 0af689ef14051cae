package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_DDL(t *testing.T) {
	c := Classify("CREATE TABLE t(a INT);")
	assert.Equal(t, KindCreate, c.Kind)
	assert.Equal(t, CategoryDDL, c.Category)
	assert.False(t, c.ReturnsRows)
}

func TestClassify_MultiWordPrefixes(t *testing.T) {
	cases := map[string]Kind{
		"FORCE CHECKPOINT":         KindForceCheckpoint,
		"COMMENT ON TABLE t IS 'x'": KindCommentOn,
		"EXPORT DATABASE 'foo'":    KindExportDatabase,
		"IMPORT DATABASE 'foo'":    KindImportDatabase,
		"BEGIN TRANSACTION":        KindBeginTxn,
		"BEGIN":                    KindBeginTxn,
	}
	for sql, want := range cases {
		c := Classify(sql)
		assert.Equalf(t, want, c.Kind, "sql=%q", sql)
	}
}

func TestClassify_ReturnsRows(t *testing.T) {
	for _, sql := range []string{
		"SELECT 1", "WITH x AS (SELECT 1) SELECT * FROM x", "DESCRIBE t",
		"SHOW TABLES", "PIVOT t", "UNPIVOT t", "FROM t", "SUMMARIZE t",
		"CALL foo()", "EXPLAIN SELECT 1",
	} {
		c := Classify(sql)
		assert.Truef(t, c.ReturnsRows, "sql=%q kind=%s", sql, c.Kind)
	}
}

func TestClassify_Unknown(t *testing.T) {
	c := Classify("FROBNICATE everything")
	require.Equal(t, KindUnknown, c.Kind)
	assert.Equal(t, CategoryUnknown, c.Category)
	assert.False(t, c.ReturnsRows)
}

func TestClassify_Pure(t *testing.T) {
	sql := "select * from users where id = 1"
	assert.Equal(t, Classify(sql), Classify(sql))
}

func TestClassify_CaseAndWhitespaceInsensitive(t *testing.T) {
	assert.Equal(t, KindSelect, Classify("  \n\tselect 1").Kind)
	assert.Equal(t, KindSelect, Classify("SeLeCt 1").Kind)
}

func TestClassify_NonDDLNonDML(t *testing.T) {
	assert.Equal(t, CategoryUTL, Classify("VACUUM").Category)
	assert.Equal(t, CategoryTCL, Classify("COMMIT").Category)
}
