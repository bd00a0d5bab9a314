package column

import "github.com/granitedb/granite/internal/types"

// Column is an in-memory columnar array of a single type.
type Column interface {
	DataType() types.DataType
	Len() int
	Value(i int) types.Value
	Append(v types.Value)
	Slice(from, to int) Column
	Clone() Column
	// ByteSize reports the in-memory payload size, used for sort budgets.
	ByteSize() uint64
}

// NewColumn creates an empty column of the given type.
func NewColumn(dt types.DataType) Column {
	return NewColumnWithCapacity(dt, 0)
}

// NewColumnWithCapacity creates a column pre-allocated for n rows.
func NewColumnWithCapacity(dt types.DataType, n int) Column {
	switch dt {
	case types.TypeInt32:
		return &Int32Column{Data: make([]int32, 0, n)}
	case types.TypeInt64:
		return &Int64Column{Data: make([]int64, 0, n)}
	case types.TypeUInt32:
		return &UInt32Column{Data: make([]uint32, 0, n)}
	case types.TypeUInt64:
		return &UInt64Column{Data: make([]uint64, 0, n)}
	case types.TypeFloat64:
		return &Float64Column{Data: make([]float64, 0, n)}
	case types.TypeString:
		return &StringColumn{Data: make([]string, 0, n)}
	default:
		panic("unsupported data type")
	}
}

func sliceRange[T any](data []T, from, to int) []T {
	d := make([]T, to-from)
	copy(d, data[from:to])
	return d
}

// --- Int32Column ---

type Int32Column struct{ Data []int32 }

func (c *Int32Column) DataType() types.DataType { return types.TypeInt32 }
func (c *Int32Column) Len() int                 { return len(c.Data) }
func (c *Int32Column) Value(i int) types.Value  { return c.Data[i] }
func (c *Int32Column) Append(v types.Value)     { c.Data = append(c.Data, v.(int32)) }
func (c *Int32Column) Slice(from, to int) Column {
	return &Int32Column{Data: sliceRange(c.Data, from, to)}
}
func (c *Int32Column) Clone() Column    { return c.Slice(0, len(c.Data)) }
func (c *Int32Column) ByteSize() uint64 { return uint64(len(c.Data)) * 4 }

// --- Int64Column ---

type Int64Column struct{ Data []int64 }

func (c *Int64Column) DataType() types.DataType { return types.TypeInt64 }
func (c *Int64Column) Len() int                 { return len(c.Data) }
func (c *Int64Column) Value(i int) types.Value  { return c.Data[i] }
func (c *Int64Column) Append(v types.Value)     { c.Data = append(c.Data, v.(int64)) }
func (c *Int64Column) Slice(from, to int) Column {
	return &Int64Column{Data: sliceRange(c.Data, from, to)}
}
func (c *Int64Column) Clone() Column    { return c.Slice(0, len(c.Data)) }
func (c *Int64Column) ByteSize() uint64 { return uint64(len(c.Data)) * 8 }

// --- UInt32Column ---

type UInt32Column struct{ Data []uint32 }

func (c *UInt32Column) DataType() types.DataType { return types.TypeUInt32 }
func (c *UInt32Column) Len() int                 { return len(c.Data) }
func (c *UInt32Column) Value(i int) types.Value  { return c.Data[i] }
func (c *UInt32Column) Append(v types.Value)     { c.Data = append(c.Data, v.(uint32)) }
func (c *UInt32Column) Slice(from, to int) Column {
	return &UInt32Column{Data: sliceRange(c.Data, from, to)}
}
func (c *UInt32Column) Clone() Column    { return c.Slice(0, len(c.Data)) }
func (c *UInt32Column) ByteSize() uint64 { return uint64(len(c.Data)) * 4 }

// --- UInt64Column ---

type UInt64Column struct{ Data []uint64 }

func (c *UInt64Column) DataType() types.DataType { return types.TypeUInt64 }
func (c *UInt64Column) Len() int                 { return len(c.Data) }
func (c *UInt64Column) Value(i int) types.Value  { return c.Data[i] }
func (c *UInt64Column) Append(v types.Value)     { c.Data = append(c.Data, v.(uint64)) }
func (c *UInt64Column) Slice(from, to int) Column {
	return &UInt64Column{Data: sliceRange(c.Data, from, to)}
}
func (c *UInt64Column) Clone() Column    { return c.Slice(0, len(c.Data)) }
func (c *UInt64Column) ByteSize() uint64 { return uint64(len(c.Data)) * 8 }

// --- Float64Column ---

type Float64Column struct{ Data []float64 }

func (c *Float64Column) DataType() types.DataType { return types.TypeFloat64 }
func (c *Float64Column) Len() int                 { return len(c.Data) }
func (c *Float64Column) Value(i int) types.Value  { return c.Data[i] }
func (c *Float64Column) Append(v types.Value)     { c.Data = append(c.Data, v.(float64)) }
func (c *Float64Column) Slice(from, to int) Column {
	return &Float64Column{Data: sliceRange(c.Data, from, to)}
}
func (c *Float64Column) Clone() Column    { return c.Slice(0, len(c.Data)) }
func (c *Float64Column) ByteSize() uint64 { return uint64(len(c.Data)) * 8 }

// --- StringColumn ---

type StringColumn struct{ Data []string }

func (c *StringColumn) DataType() types.DataType { return types.TypeString }
func (c *StringColumn) Len() int                 { return len(c.Data) }
func (c *StringColumn) Value(i int) types.Value  { return c.Data[i] }
func (c *StringColumn) Append(v types.Value)     { c.Data = append(c.Data, v.(string)) }
func (c *StringColumn) Slice(from, to int) Column {
	return &StringColumn{Data: sliceRange(c.Data, from, to)}
}
func (c *StringColumn) Clone() Column { return c.Slice(0, len(c.Data)) }
func (c *StringColumn) ByteSize() uint64 {
	// Header (pointer+len) plus payload per string.
	total := uint64(len(c.Data)) * 16
	for _, s := range c.Data {
		total += uint64(len(s))
	}
	return total
}
