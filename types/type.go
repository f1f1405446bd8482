package types

// Type is a resolved logical type. It is an immutable value.
type Type struct {
	kind Kind
}

// Common resolved types.
var (
	NullType      = Type{kind: Null}
	BooleanType   = Type{kind: Boolean}
	IntegerType   = Type{kind: Integer}
	BigIntType    = Type{kind: BigInt}
	DecimalType   = Type{kind: Decimal}
	DoubleType    = Type{kind: Double}
	VarCharType   = Type{kind: VarChar}
	TextType      = Type{kind: Text}
	BinaryType    = Type{kind: Binary}
	JSONType      = Type{kind: JSON}
	TimestampType = Type{kind: Timestamp}
)

// Of returns the logical type for kind.
func Of(kind Kind) Type { return Type{kind: kind} }

// OfValue returns the logical type of a Go value.
func OfValue(v any) Type { return Type{kind: KindOfValue(v)} }

// Kind returns the kind of the type.
func (t Type) Kind() Kind { return t.kind }

// IsNull reports whether t is the type of a bare NULL.
func (t Type) IsNull() bool { return t.kind == Null }

func (t Type) String() string { return t.kind.String() }

// numericRank orders numeric kinds for widening.
var numericRank = map[Kind]int{
	TinyInt:  1,
	SmallInt: 2,
	Integer:  3,
	BigInt:   4,
	Decimal:  5,
	Float:    6,
	Double:   7,
}

// Promote returns the type of an arithmetic combination of a and b.
// NULL yields the other operand; two numeric kinds widen to the larger one;
// mixing a string with a number yields DOUBLE (the MySQL coercion rule);
// anything else keeps a.
func Promote(a, b Type) Type {
	switch {
	case a.kind == Null:
		return b
	case b.kind == Null:
		return a
	}
	ra, aNum := numericRank[a.kind]
	rb, bNum := numericRank[b.kind]
	switch {
	case aNum && bNum:
		if rb > ra {
			return b
		}
		return a
	case aNum && b.kind.IsString(), bNum && a.kind.IsString():
		return DoubleType
	}
	return a
}

// FirstNonNull returns the first type in ts that is not NULL, or NULL.
func FirstNonNull(ts []Type) Type {
	for _, t := range ts {
		if !t.IsNull() {
			return t
		}
	}
	return NullType
}

// Identity is a resolver that adopts the dependency's type.
func Identity(t Type) Type { return t }
