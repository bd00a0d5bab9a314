package column

// Vectorized column operations on raw typed slices, avoiding per-row
// Value/Append boxing.

func filterSlice[T any](data []T, mask []bool) []T {
	out := make([]T, 0, len(data))
	for i, v := range data {
		if mask[i] {
			out = append(out, v)
		}
	}
	return out
}

func gatherSlice[T any](data []T, indices []int) []T {
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = data[idx]
	}
	return out
}

// FilterByMask returns a new column keeping only rows where mask[i] is true.
func FilterByMask(col Column, mask []bool) Column {
	switch c := col.(type) {
	case *Int32Column:
		return &Int32Column{Data: filterSlice(c.Data, mask)}
	case *Int64Column:
		return &Int64Column{Data: filterSlice(c.Data, mask)}
	case *UInt32Column:
		return &UInt32Column{Data: filterSlice(c.Data, mask)}
	case *UInt64Column:
		return &UInt64Column{Data: filterSlice(c.Data, mask)}
	case *Float64Column:
		return &Float64Column{Data: filterSlice(c.Data, mask)}
	case *StringColumn:
		return &StringColumn{Data: filterSlice(c.Data, mask)}
	default:
		panic("FilterByMask: unsupported column type")
	}
}

// Gather returns a new column reordering rows by the given index array.
func Gather(col Column, indices []int) Column {
	switch c := col.(type) {
	case *Int32Column:
		return &Int32Column{Data: gatherSlice(c.Data, indices)}
	case *Int64Column:
		return &Int64Column{Data: gatherSlice(c.Data, indices)}
	case *UInt32Column:
		return &UInt32Column{Data: gatherSlice(c.Data, indices)}
	case *UInt64Column:
		return &UInt64Column{Data: gatherSlice(c.Data, indices)}
	case *Float64Column:
		return &Float64Column{Data: gatherSlice(c.Data, indices)}
	case *StringColumn:
		return &StringColumn{Data: gatherSlice(c.Data, indices)}
	default:
		panic("Gather: unsupported column type")
	}
}

// AppendColumn bulk-appends all rows from src onto dst.
// Both must be the same concrete type.
func AppendColumn(dst, src Column) {
	switch d := dst.(type) {
	case *Int32Column:
		d.Data = append(d.Data, src.(*Int32Column).Data...)
	case *Int64Column:
		d.Data = append(d.Data, src.(*Int64Column).Data...)
	case *UInt32Column:
		d.Data = append(d.Data, src.(*UInt32Column).Data...)
	case *UInt64Column:
		d.Data = append(d.Data, src.(*UInt64Column).Data...)
	case *Float64Column:
		d.Data = append(d.Data, src.(*Float64Column).Data...)
	case *StringColumn:
		d.Data = append(d.Data, src.(*StringColumn).Data...)
	default:
		panic("AppendColumn: unsupported column type")
	}
}
