package myarrow

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToArrowType_Primitives(t *testing.T) {
	cases := map[string]arrow.DataType{
		"BOOLEAN":   arrow.FixedWidthTypes.Boolean,
		"TINYINT":   arrow.PrimitiveTypes.Int8,
		"SMALLINT":  arrow.PrimitiveTypes.Int16,
		"INTEGER":   arrow.PrimitiveTypes.Int32,
		"BIGINT":    arrow.PrimitiveTypes.Int64,
		"UBIGINT":   arrow.PrimitiveTypes.Uint64,
		"FLOAT":     arrow.PrimitiveTypes.Float32,
		"DOUBLE":    arrow.PrimitiveTypes.Float64,
		"VARCHAR":   arrow.BinaryTypes.String,
		"DATE":      arrow.FixedWidthTypes.Date32,
		"BLOB":      arrow.BinaryTypes.Binary,
	}
	for in, want := range cases {
		got, err := ToArrowType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestToArrowType_CaseAndWhitespaceInsensitive(t *testing.T) {
	got, err := ToArrowType("  bigint ")
	require.NoError(t, err)
	assert.Equal(t, arrow.PrimitiveTypes.Int64, got)
}

func TestToArrowType_Decimal(t *testing.T) {
	got, err := ToArrowType("DECIMAL(10,2)")
	require.NoError(t, err)
	assert.Equal(t, &arrow.Decimal128Type{Precision: 10, Scale: 2}, got)

	got, err = ToArrowType("DECIMAL(30,5)")
	require.NoError(t, err)
	assert.Equal(t, &arrow.Decimal256Type{Precision: 30, Scale: 5}, got)
}

func TestToArrowType_ListSuffix(t *testing.T) {
	got, err := ToArrowType("INTEGER[]")
	require.NoError(t, err)
	assert.Equal(t, arrow.ListOf(arrow.PrimitiveTypes.Int32), got)
}

func TestToArrowType_UnknownFallsBackToString(t *testing.T) {
	got, err := ToArrowType("STRUCT(a INTEGER)")
	require.NoError(t, err)
	assert.Equal(t, arrow.BinaryTypes.String, got)
}

func TestParseDecimalParams_DefaultsOnMalformed(t *testing.T) {
	p, s := parseDecimalParams("DECIMAL")
	assert.Equal(t, 18, p)
	assert.Equal(t, 3, s)
}
