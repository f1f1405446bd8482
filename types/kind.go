// Package types models the logical data type of an expression and resolves
// types that can only be computed once other parts of a statement are known.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies how a value is encoded and decoded.
type Kind uint8

const (
	Unknown Kind = iota
	Null
	Boolean
	TinyInt
	SmallInt
	Integer
	BigInt
	Decimal
	Float
	Double
	Char
	VarChar
	Text
	Binary
	JSON
	Date
	Time
	DateTime
	Timestamp
	Geometry
)

var kindNames = [...]string{
	Unknown:   "UNKNOWN",
	Null:      "NULL",
	Boolean:   "BOOLEAN",
	TinyInt:   "TINYINT",
	SmallInt:  "SMALLINT",
	Integer:   "INTEGER",
	BigInt:    "BIGINT",
	Decimal:   "DECIMAL",
	Float:     "FLOAT",
	Double:    "DOUBLE",
	Char:      "CHAR",
	VarChar:   "VARCHAR",
	Text:      "TEXT",
	Binary:    "BINARY",
	JSON:      "JSON",
	Date:      "DATE",
	Time:      "TIME",
	DateTime:  "DATETIME",
	Timestamp: "TIMESTAMP",
	Geometry:  "GEOMETRY",
}

// String returns the SQL-ish name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// kindAliases maps accepted spellings to kinds.
var kindAliases = map[string]Kind{
	"null":      Null,
	"bool":      Boolean,
	"boolean":   Boolean,
	"tinyint":   TinyInt,
	"smallint":  SmallInt,
	"int":       Integer,
	"integer":   Integer,
	"int32":     Integer,
	"bigint":    BigInt,
	"int64":     BigInt,
	"decimal":   Decimal,
	"numeric":   Decimal,
	"float":     Float,
	"real":      Float,
	"double":    Double,
	"float64":   Double,
	"char":      Char,
	"varchar":   VarChar,
	"string":    VarChar,
	"text":      Text,
	"binary":    Binary,
	"blob":      Binary,
	"bytes":     Binary,
	"json":      JSON,
	"jsonb":     JSON,
	"date":      Date,
	"time":      Time,
	"datetime":  DateTime,
	"timestamp": Timestamp,
	"geometry":  Geometry,
}

// ParseKind parses a type name such as "bigint" or "VARCHAR".
func ParseKind(name string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return Unknown, fmt.Errorf("unknown logical type %q", name)
}

// IsNumeric reports whether the kind is an integer or decimal/floating kind.
func (k Kind) IsNumeric() bool {
	return k >= TinyInt && k <= Double
}

// IsInteger reports whether the kind is an integer kind.
func (k Kind) IsInteger() bool {
	return k >= TinyInt && k <= BigInt
}

// IsString reports whether the kind is a character kind.
func (k Kind) IsString() bool {
	return k == Char || k == VarChar || k == Text
}

// IsTemporal reports whether the kind is a date or time kind.
func (k Kind) IsTemporal() bool {
	return k >= Date && k <= Timestamp
}

// KindOfValue returns the kind a Go value maps to. nil maps to Null.
func KindOfValue(v any) Kind {
	switch v.(type) {
	case nil:
		return Null
	case bool, *bool:
		return Boolean
	case int8, uint8:
		return TinyInt
	case int16, uint16:
		return SmallInt
	case int32, uint32, *int32:
		return Integer
	case int, int64, uint, uint64, *int, *int64:
		return BigInt
	case float32:
		return Float
	case float64, *float64:
		return Double
	case string, *string:
		return VarChar
	case []byte:
		return Binary
	case time.Time, *time.Time:
		return Timestamp
	default:
		return Unknown
	}
}
