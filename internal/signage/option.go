package signage

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// OptionKind identifies which scalar an OptionValue holds.
type OptionKind uint8

// Option value kinds.
const (
	OptionNull OptionKind = iota
	OptionString
	OptionNumber
	OptionBool
)

// String returns the kind name.
func (k OptionKind) String() string {
	switch k {
	case OptionString:
		return "string"
	case OptionNumber:
		return "number"
	case OptionBool:
		return "bool"
	default:
		return "null"
	}
}

// OptionValue is a scalar option value: string, number, boolean or null.
// The zero value is null.
type OptionValue struct {
	kind OptionKind
	str  string
	num  json.Number
	b    bool
}

// StringValue returns a string option value.
func StringValue(s string) OptionValue { return OptionValue{kind: OptionString, str: s} }

// NumberValue returns a numeric option value.
func NumberValue(n float64) OptionValue {
	return OptionValue{kind: OptionNumber, num: json.Number(strconv.FormatFloat(n, 'g', -1, 64))}
}

// BoolValue returns a boolean option value.
func BoolValue(b bool) OptionValue { return OptionValue{kind: OptionBool, b: b} }

// NullValue returns the null option value.
func NullValue() OptionValue { return OptionValue{} }

// Kind reports which scalar the value holds.
func (v OptionValue) Kind() OptionKind { return v.kind }

// Str returns the string payload, or "" for other kinds.
func (v OptionValue) Str() string { return v.str }

// Num returns the numeric payload as a float64, or 0 for other kinds.
// Integers beyond 2^53 lose precision here; Number keeps the literal.
func (v OptionValue) Num() float64 {
	f, _ := v.num.Float64() //nolint:errcheck // literal validated on construction
	return f
}

// Number returns the numeric payload as submitted, or "" for other kinds.
func (v OptionValue) Number() json.Number { return v.num }

// Bool returns the boolean payload, or false for other kinds.
func (v OptionValue) Bool() bool { return v.b }

// Equal reports whether two values have the same kind and payload.
func (v OptionValue) Equal(o OptionValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case OptionString:
		return v.str == o.str
	case OptionNumber:
		return numbersEqual(v.num, o.num)
	case OptionBool:
		return v.b == o.b
	default:
		return true
	}
}

// numbersEqual compares two number literals. Integers compare exactly so
// values beyond float64 precision stay distinct; "2" and "2.0" are equal.
func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	ai, aerr := a.Int64()
	bi, berr := b.Int64()
	if aerr == nil && berr == nil {
		return ai == bi
	}
	af, aerr := a.Float64()
	bf, berr := b.Float64()
	return aerr == nil && berr == nil && af == bf
}

// String renders the value for logs.
func (v OptionValue) String() string {
	switch v.kind {
	case OptionString:
		return strconv.Quote(v.str)
	case OptionNumber:
		return v.num.String()
	case OptionBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

// MarshalJSON encodes the value as a JSON scalar.
func (v OptionValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case OptionString:
		return json.Marshal(v.str)
	case OptionNumber:
		if !json.Valid([]byte(v.num)) {
			return nil, fmt.Errorf("%w: invalid number %q", ErrValidation, string(v.num))
		}
		return []byte(v.num), nil
	case OptionBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar. Objects and arrays are rejected
// with ErrValidation.
func (v *OptionValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty option value", ErrValidation)
	}

	switch data[0] {
	case 'n':
		*v = NullValue()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("%w: option value: %w", ErrValidation, err)
		}
		*v = BoolValue(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: option value: %w", ErrValidation, err)
		}
		*v = StringValue(s)
	case '{', '[':
		return fmt.Errorf("%w: option values must be string, number, boolean or null", ErrValidation)
	default:
		// json.Number keeps the literal, so large integers round-trip.
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: option value: %w", ErrValidation, err)
		}
		*v = OptionValue{kind: OptionNumber, num: n}
	}
	return nil
}

// Value implements driver.Valuer; values are stored as JSON text.
func (v OptionValue) Value() (driver.Value, error) {
	b, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSON text columns.
func (v *OptionValue) Scan(src any) error {
	switch s := src.(type) {
	case string:
		return v.UnmarshalJSON([]byte(s))
	case []byte:
		return v.UnmarshalJSON(s)
	case nil:
		*v = NullValue()
		return nil
	default:
		return fmt.Errorf("scanning option value: unsupported type %T", src)
	}
}

// Option is one key/value pair of a desired option set.
type Option struct {
	Key   string      `json:"key"`
	Value OptionValue `json:"value"`
}

// OrderedOptions is a desired option set in submission order.
//
// It decodes from and encodes to a JSON object, keeping the key order of
// the document. Repository calls made from it follow that order.
type OrderedOptions []Option

// Get returns the value for key and whether it is present.
func (o OrderedOptions) Get(key string) (OptionValue, bool) {
	for _, opt := range o {
		if opt.Key == key {
			return opt.Value, true
		}
	}
	return OptionValue{}, false
}

// Has reports whether key is present.
func (o OrderedOptions) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Map converts the options into an unordered OptionMap.
func (o OrderedOptions) Map() OptionMap {
	m := make(OptionMap, len(o))
	for _, opt := range o {
		m[opt.Key] = opt.Value
	}
	return m
}

// MarshalJSON encodes the options as a JSON object in order.
func (o OrderedOptions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(opt.Key)
		if err != nil {
			return nil, err
		}
		val, err := opt.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order. A JSON null
// yields an empty set.
func (o *OrderedOptions) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: options: %w", ErrValidation, err)
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: options must be a JSON object", ErrValidation)
	}

	opts := OrderedOptions{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: options: %w", ErrValidation, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("%w: option key must be a string", ErrValidation)
		}

		var val OptionValue
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("option %q: %w", key, err)
		}
		opts = append(opts, Option{Key: key, Value: val})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: options: %w", ErrValidation, err)
	}

	*o = opts
	return nil
}

// OptionMap is the persisted option set of a content slot.
type OptionMap map[string]OptionValue

// Equal reports whether both maps hold the same keys and values.
func (m OptionMap) Equal(o OptionMap) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
