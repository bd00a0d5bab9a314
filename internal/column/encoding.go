package column

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/granitedb/granite/internal/types"
)

// Binary column format. Fixed-size types: raw little-endian contiguous
// bytes. String: Uvarint(length) + raw bytes per string.

// WriteVarUInt writes a variable-length unsigned integer.
func WriteVarUInt(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// ReadVarUInt reads a variable-length unsigned integer.
func ReadVarUInt(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}

// EncodeColumn encodes a column to its binary representation.
func EncodeColumn(col Column) ([]byte, error) {
	var buf bytes.Buffer
	switch c := col.(type) {
	case *Int32Column:
		b := make([]byte, 4*len(c.Data))
		for i, v := range c.Data {
			binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
		}
		buf.Write(b)
	case *Int64Column:
		b := make([]byte, 8*len(c.Data))
		for i, v := range c.Data {
			binary.LittleEndian.PutUint64(b[i*8:], uint64(v))
		}
		buf.Write(b)
	case *UInt32Column:
		b := make([]byte, 4*len(c.Data))
		for i, v := range c.Data {
			binary.LittleEndian.PutUint32(b[i*4:], v)
		}
		buf.Write(b)
	case *UInt64Column:
		b := make([]byte, 8*len(c.Data))
		for i, v := range c.Data {
			binary.LittleEndian.PutUint64(b[i*8:], v)
		}
		buf.Write(b)
	case *Float64Column:
		b := make([]byte, 8*len(c.Data))
		for i, v := range c.Data {
			binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
		}
		buf.Write(b)
	case *StringColumn:
		for _, s := range c.Data {
			if err := WriteVarUInt(&buf, uint64(len(s))); err != nil {
				return nil, err
			}
			buf.WriteString(s)
		}
	default:
		return nil, fmt.Errorf("unsupported column type for encoding: %T", col)
	}
	return buf.Bytes(), nil
}

// DecodeColumn decodes a column of numRows values from binary data.
func DecodeColumn(dt types.DataType, data []byte, numRows int) (Column, error) {
	fixed := dt.FixedSize()
	if fixed > 0 && len(data) < fixed*numRows {
		return nil, fmt.Errorf("decoding %s column: need %d bytes, have %d",
			dt.Name(), fixed*numRows, len(data))
	}
	switch dt {
	case types.TypeInt32:
		col := &Int32Column{Data: make([]int32, numRows)}
		for i := range col.Data {
			col.Data[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return col, nil
	case types.TypeInt64:
		col := &Int64Column{Data: make([]int64, numRows)}
		for i := range col.Data {
			col.Data[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return col, nil
	case types.TypeUInt32:
		col := &UInt32Column{Data: make([]uint32, numRows)}
		for i := range col.Data {
			col.Data[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
		return col, nil
	case types.TypeUInt64:
		col := &UInt64Column{Data: make([]uint64, numRows)}
		for i := range col.Data {
			col.Data[i] = binary.LittleEndian.Uint64(data[i*8:])
		}
		return col, nil
	case types.TypeFloat64:
		col := &Float64Column{Data: make([]float64, numRows)}
		for i := range col.Data {
			col.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return col, nil
	case types.TypeString:
		col := &StringColumn{Data: make([]string, 0, numRows)}
		r := bytes.NewReader(data)
		for i := 0; i < numRows; i++ {
			length, err := ReadVarUInt(r)
			if err != nil {
				return nil, fmt.Errorf("reading string length at row %d: %w", i, err)
			}
			b := make([]byte, length)
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, fmt.Errorf("reading string data at row %d: %w", i, err)
			}
			col.Data = append(col.Data, string(b))
		}
		return col, nil
	default:
		return nil, fmt.Errorf("unsupported data type for decoding: %d", dt)
	}
}
