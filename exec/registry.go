package exec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shipq/critq/types"
)

// Registry maps logical type kinds to codecs. It implements types.Registry.
type Registry struct {
	codecs map[types.Kind]types.Codec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[types.Kind]types.Codec)}
}

// DefaultRegistry returns a registry with codecs for JSON, temporal and
// boolean values.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(types.JSON, JSONCodec{})
	for _, k := range []types.Kind{types.Date, types.DateTime, types.Timestamp} {
		r.Register(k, TimeCodec{})
	}
	r.Register(types.Boolean, BoolCodec{})
	return r
}

// Register sets the codec for kind, replacing any previous one.
func (r *Registry) Register(kind types.Kind, c types.Codec) {
	r.codecs[kind] = c
}

// Lookup returns the codec for t.
func (r *Registry) Lookup(t types.Type) (types.Codec, bool) {
	c, ok := r.codecs[t.Kind()]
	return c, ok
}

// JSONCodec stores JSON documents as text. Byte slices and strings are taken
// to be encoded already; anything else is marshaled.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case json.RawMessage:
		return string(val), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return string(data), nil
}

// Decode returns a json.RawMessage for text columns and leaves other values
// alone.
func (JSONCodec) Decode(src any) (any, error) {
	switch val := src.(type) {
	case []byte:
		return json.RawMessage(append([]byte(nil), val...)), nil
	case string:
		return json.RawMessage(val), nil
	}
	return src, nil
}

// TimeCodec normalizes temporal values to UTC.
type TimeCodec struct{}

// timeLayouts are tried in order when a driver returns a temporal value as
// text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func (TimeCodec) Encode(v any) (any, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		return val.UTC(), nil
	}
	return v, nil
}

func (TimeCodec) Decode(src any) (any, error) {
	switch val := src.(type) {
	case time.Time:
		return val.UTC(), nil
	case []byte:
		return parseTime(string(val))
	case string:
		return parseTime(val)
	}
	return src, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}

// BoolCodec decodes the integer and text spellings drivers use for
// booleans.
type BoolCodec struct{}

func (BoolCodec) Encode(v any) (any, error) { return v, nil }

func (BoolCodec) Decode(src any) (any, error) {
	switch val := src.(type) {
	case bool:
		return val, nil
	case int64:
		return val != 0, nil
	case []byte:
		return parseBool(string(val))
	case string:
		return parseBool(val)
	}
	return src, nil
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("cannot parse %q as a boolean", s)
	}
	return b, nil
}
