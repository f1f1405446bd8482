package types

// Codec encodes bound values for the driver and decodes result columns.
type Codec interface {
	Encode(v any) (any, error)
	Decode(src any) (any, error)
}

// Registry supplies the codec for a logical type. The compile and query
// packages only call a Registry; implementations live with the execution
// layer.
type Registry interface {
	Lookup(t Type) (Codec, bool)
}
