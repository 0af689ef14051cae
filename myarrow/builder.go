package myarrow

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// RowBatchBuilder accumulates scanned *sql.Rows values into Arrow arrays
// and finishes them into a record batch. One builder is used per batch;
// the arrowexec executor creates a fresh builder for each batch-sized
// chunk of rows (rowsPerBatch, or Hints.BatchRows when set).
type RowBatchBuilder struct {
	schema  *arrow.Schema
	alloc   memory.Allocator
	builder *array.RecordBuilder
}

func NewRowBatchBuilder(schema *arrow.Schema) *RowBatchBuilder {
	alloc := memory.NewGoAllocator()
	return &RowBatchBuilder{
		schema:  schema,
		alloc:   alloc,
		builder: array.NewRecordBuilder(alloc, schema),
	}
}

// AppendRow appends one row of already-scanned driver values (as scanned
// by rows.Scan in arrowexec's result loop) to the in-progress batch.
func (b *RowBatchBuilder) AppendRow(values []any) error {
	if len(values) != len(b.schema.Fields()) {
		return fmt.Errorf("row has %d values, schema has %d fields", len(values), len(b.schema.Fields()))
	}
	for i, v := range values {
		if err := appendValue(b.builder.Field(i), b.schema.Field(i).Type, v); err != nil {
			return fmt.Errorf("column %q: %w", b.schema.Field(i).Name, err)
		}
	}
	return nil
}

// NumRows reports how many rows have been appended so far.
func (b *RowBatchBuilder) NumRows() int {
	if len(b.builder.Fields()) == 0 {
		return 0
	}
	return b.builder.Field(0).Len()
}

// NewRecord finishes the batch into an immutable arrow.Record. The
// builder is reset and can be reused for the next batch.
func (b *RowBatchBuilder) NewRecord() arrow.Record {
	return b.builder.NewRecord()
}

func (b *RowBatchBuilder) Release() {
	b.builder.Release()
}

func appendValue(fb array.Builder, dt arrow.DataType, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}

	switch bd := fb.(type) {
	case *array.BooleanBuilder:
		b, err := asBool(v)
		if err != nil {
			return err
		}
		bd.Append(b)
	case *array.Int8Builder:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		bd.Append(int8(n))
	case *array.Uint8Builder:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		bd.Append(uint8(n))
	case *array.Int16Builder:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		bd.Append(int16(n))
	case *array.Uint16Builder:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		bd.Append(uint16(n))
	case *array.Int32Builder:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		bd.Append(int32(n))
	case *array.Uint32Builder:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		bd.Append(uint32(n))
	case *array.Int64Builder:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		bd.Append(n)
	case *array.Uint64Builder:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		bd.Append(uint64(n))
	case *array.Float32Builder:
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		bd.Append(float32(f))
	case *array.Float64Builder:
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		bd.Append(f)
	case *array.StringBuilder:
		bd.Append(asString(v))
	case *array.BinaryBuilder:
		bin, err := asBytes(v)
		if err != nil {
			return err
		}
		bd.Append(bin)
	case *array.Date32Builder:
		t, err := asTime(v)
		if err != nil {
			return err
		}
		bd.Append(arrow.Date32FromTime(t))
	case *array.TimestampBuilder:
		t, err := asTime(v)
		if err != nil {
			return err
		}
		ts, err := arrow.TimestampFromTime(t, dt.(*arrow.TimestampType).Unit)
		if err != nil {
			return err
		}
		bd.Append(ts)
	case *array.Time64Builder:
		t, err := asTime(v)
		if err != nil {
			return err
		}
		micros := t.Hour()*3600000000 + t.Minute()*60000000 + t.Second()*1000000 + t.Nanosecond()/1000
		bd.Append(arrow.Time64(micros))
	default:
		// Decimal/list/unsupported builder kinds fall back to their
		// textual representation rather than failing the whole batch.
		if sb, ok := fb.(interface{ AppendString(string) }); ok {
			sb.AppendString(asString(v))
			return nil
		}
		return fmt.Errorf("unsupported arrow builder %T for value %v", fb, v)
	}
	return nil
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int64:
		return float64(f), nil
	default:
		return 0, fmt.Errorf("expected float, got %T", v)
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("expected bytes, got %T", v)
	}
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("expected time.Time, got %T", v)
	}
}

