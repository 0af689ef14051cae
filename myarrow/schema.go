// Package myarrow maps DuckDB's database/sql column type names to Arrow
// types and builds Arrow record batches from driver rows for the
// streaming executor.
package myarrow

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// ToArrowSchema builds an Arrow schema from *sql.Rows column metadata.
func ToArrowSchema(rows *sql.Rows) (*arrow.Schema, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}

	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		at, err := ToArrowType(c.DatabaseTypeName())
		if err != nil {
			return nil, err
		}
		nullable, _ := c.Nullable()
		fields[i] = arrow.Field{Name: c.Name(), Type: at, Nullable: nullable}
	}
	return arrow.NewSchema(fields, nil), nil
}

// ToArrowType translates a DuckDB DatabaseTypeName() string to an Arrow
// DataType.
func ToArrowType(duckdbType string) (arrow.DataType, error) {
	t := strings.ToUpper(strings.TrimSpace(duckdbType))

	switch {
	case t == "BOOLEAN" || t == "BOOL":
		return arrow.FixedWidthTypes.Boolean, nil
	case t == "TINYINT" || t == "INT1":
		return arrow.PrimitiveTypes.Int8, nil
	case t == "UTINYINT":
		return arrow.PrimitiveTypes.Uint8, nil
	case t == "SMALLINT" || t == "INT2" || t == "SHORT":
		return arrow.PrimitiveTypes.Int16, nil
	case t == "USMALLINT":
		return arrow.PrimitiveTypes.Uint16, nil
	case t == "INTEGER" || t == "INT4" || t == "INT" || t == "SIGNED":
		return arrow.PrimitiveTypes.Int32, nil
	case t == "UINTEGER":
		return arrow.PrimitiveTypes.Uint32, nil
	case t == "BIGINT" || t == "INT8" || t == "LONG":
		return arrow.PrimitiveTypes.Int64, nil
	case t == "UBIGINT":
		return arrow.PrimitiveTypes.Uint64, nil
	case t == "HUGEINT":
		return &arrow.Decimal128Type{Precision: 38, Scale: 0}, nil
	case t == "FLOAT" || t == "REAL" || t == "FLOAT4":
		return arrow.PrimitiveTypes.Float32, nil
	case t == "DOUBLE" || t == "FLOAT8":
		return arrow.PrimitiveTypes.Float64, nil
	case t == "DATE":
		return arrow.FixedWidthTypes.Date32, nil
	case t == "TIME":
		return arrow.FixedWidthTypes.Time64us, nil
	case t == "TIMESTAMP" || t == "DATETIME" || t == "TIMESTAMP_US":
		return &arrow.TimestampType{Unit: arrow.Microsecond}, nil
	case t == "TIMESTAMP_NS":
		return &arrow.TimestampType{Unit: arrow.Nanosecond}, nil
	case t == "TIMESTAMP_MS":
		return &arrow.TimestampType{Unit: arrow.Millisecond}, nil
	case t == "TIMESTAMP_S":
		return &arrow.TimestampType{Unit: arrow.Second}, nil
	case t == "TIMESTAMP WITH TIME ZONE" || t == "TIMESTAMPTZ":
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
	case t == "BLOB" || t == "BYTEA" || t == "BINARY" || t == "VARBINARY":
		return arrow.BinaryTypes.Binary, nil
	case t == "UUID":
		return arrow.BinaryTypes.String, nil
	case t == "JSON":
		return arrow.BinaryTypes.String, nil
	case strings.HasPrefix(t, "DECIMAL"):
		precision, scale := parseDecimalParams(t)
		if precision > 18 {
			return &arrow.Decimal256Type{Precision: int32(precision), Scale: int32(scale)}, nil
		}
		return &arrow.Decimal128Type{Precision: int32(precision), Scale: int32(scale)}, nil
	case t == "VARCHAR" || t == "TEXT" || t == "STRING" || t == "CHAR" || t == "BPCHAR":
		return arrow.BinaryTypes.String, nil
	case strings.HasSuffix(t, "[]"):
		elem, err := ToArrowType(strings.TrimSuffix(t, "[]"))
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil
	default:
		// Fall back to string rather than panicking: unsupported or
		// exotic DuckDB types (ENUM, STRUCT, MAP, UNION, ...) still
		// stream, just rendered as their textual form.
		return arrow.BinaryTypes.String, nil
	}
}

func parseDecimalParams(t string) (precision, scale int) {
	precision, scale = 18, 3
	inner := strings.TrimPrefix(strings.TrimSuffix(t, ")"), "DECIMAL(")
	parts := strings.Split(inner, ",")
	if len(parts) == 2 {
		if p, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
			precision = p
		}
		if s, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			scale = s
		}
	}
	return precision, scale
}
