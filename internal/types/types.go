package types

import (
	"fmt"
	"strings"
)

// DataType identifies a column scalar type.
type DataType uint8

const (
	TypeInt32 DataType = iota
	TypeInt64
	TypeUInt32
	TypeUInt64
	TypeFloat64
	TypeString
)

// TypeInfo holds metadata about a data type.
type TypeInfo struct {
	Type      DataType
	Name      string
	FixedSize int // bytes per value; 0 for variable-length (String)
}

var typeInfoList = []TypeInfo{
	{TypeInt32, "Int32", 4},
	{TypeInt64, "Int64", 8},
	{TypeUInt32, "UInt32", 4},
	{TypeUInt64, "UInt64", 8},
	{TypeFloat64, "Float64", 8},
	{TypeString, "String", 0},
}

var typeInfoMap map[DataType]TypeInfo
var typeNameMap map[string]DataType

func init() {
	typeInfoMap = make(map[DataType]TypeInfo, len(typeInfoList))
	typeNameMap = make(map[string]DataType, len(typeInfoList))
	for _, ti := range typeInfoList {
		typeInfoMap[ti.Type] = ti
		typeNameMap[strings.ToLower(ti.Name)] = ti.Type
	}
}

// ParseDataType converts a type name string (case-insensitive) to DataType.
// Used when decoding spill run headers.
func ParseDataType(name string) (DataType, error) {
	dt, ok := typeNameMap[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown data type: %s", name)
	}
	return dt, nil
}

// Name returns the string name of the DataType.
func (dt DataType) Name() string {
	if ti, ok := typeInfoMap[dt]; ok {
		return ti.Name
	}
	return "Unknown"
}

// FixedSize returns the byte size for fixed-size types, 0 for variable-length.
func (dt DataType) FixedSize() int {
	if ti, ok := typeInfoMap[dt]; ok {
		return ti.FixedSize
	}
	return 0
}
