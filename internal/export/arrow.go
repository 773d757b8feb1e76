package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"superstore/internal/engine"
)

// RecordSchema is the Arrow layout of engine.Record.
var RecordSchema = arrow.NewSchema([]arrow.Field{
	{Name: "order_date", Type: arrow.FixedWidthTypes.Date32},
	{Name: "ship_date", Type: arrow.FixedWidthTypes.Date32},
	{Name: "customer_name", Type: arrow.BinaryTypes.String},
	{Name: "region", Type: arrow.BinaryTypes.String},
	{Name: "category", Type: arrow.BinaryTypes.String},
	{Name: "segment", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "sub_category", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "ship_mode", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "sales", Type: arrow.PrimitiveTypes.Float64},
	{Name: "quantity", Type: arrow.PrimitiveTypes.Int64},
	{Name: "discount", Type: arrow.PrimitiveTypes.Float64},
	{Name: "profit", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// ArrowContentType is the media type of an Arrow IPC stream.
const ArrowContentType = "application/vnd.apache.arrow.stream"

// WriteArrow streams ds to w as Arrow IPC batches of at most batchSize rows.
func WriteArrow(w io.Writer, ds *engine.Dataset, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 64 * 1024
	}
	mem := memory.NewGoAllocator()
	writer := ipc.NewWriter(w, ipc.WithSchema(RecordSchema), ipc.WithAllocator(mem))

	b := array.NewRecordBuilder(mem, RecordSchema)
	defer b.Release()

	n := ds.Len()
	for start := 0; ; start += batchSize {
		end := min(start+batchSize, n)
		for i := start; i < end; i++ {
			appendRecord(b, ds.At(i))
		}
		rec := b.NewRecord()
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			writer.Close()
			return fmt.Errorf("write arrow batch: %w", err)
		}
		if end >= n {
			break
		}
	}
	return writer.Close()
}

func appendRecord(b *array.RecordBuilder, r engine.Record) {
	b.Field(0).(*array.Date32Builder).Append(arrow.Date32FromTime(r.OrderDate))
	b.Field(1).(*array.Date32Builder).Append(arrow.Date32FromTime(r.ShipDate))
	b.Field(2).(*array.StringBuilder).Append(r.CustomerName)
	b.Field(3).(*array.StringBuilder).Append(r.Region)
	b.Field(4).(*array.StringBuilder).Append(r.Category)
	appendOptional(b.Field(5).(*array.StringBuilder), r.Segment)
	appendOptional(b.Field(6).(*array.StringBuilder), r.SubCategory)
	appendOptional(b.Field(7).(*array.StringBuilder), r.ShipMode)
	b.Field(8).(*array.Float64Builder).Append(r.Sales)
	b.Field(9).(*array.Int64Builder).Append(int64(r.Quantity))
	b.Field(10).(*array.Float64Builder).Append(r.Discount)
	b.Field(11).(*array.Float64Builder).Append(r.Profit)
}

func appendOptional(b *array.StringBuilder, v string) {
	if v == "" {
		b.AppendNull()
		return
	}
	b.Append(v)
}
