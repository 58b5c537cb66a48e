package signage

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestOrderedOptions_PreservesKeyOrder(t *testing.T) {
	var opts OrderedOptions
	if err := json.Unmarshal([]byte(`{"z": 1, "a": "x", "m": true, "n": null}`), &opts); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	wantKeys := []string{"z", "a", "m", "n"}
	if len(opts) != len(wantKeys) {
		t.Fatalf("got %d options, want %d", len(opts), len(wantKeys))
	}
	for i, k := range wantKeys {
		if opts[i].Key != k {
			t.Errorf("option %d key = %q, want %q", i, opts[i].Key, k)
		}
	}

	kinds := []OptionKind{OptionNumber, OptionString, OptionBool, OptionNull}
	for i, k := range kinds {
		if opts[i].Value.Kind() != k {
			t.Errorf("option %q kind = %s, want %s", opts[i].Key, opts[i].Value.Kind(), k)
		}
	}

	out, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"z":1,"a":"x","m":true,"n":null}` {
		t.Errorf("Marshal = %s", out)
	}
}

func TestOrderedOptions_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"array", `["a"]`},
		{"nested object", `{"a": {"b": 1}}`},
		{"array value", `{"a": [1, 2]}`},
		{"string", `"color"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts OrderedOptions
			err := json.Unmarshal([]byte(tt.input), &opts)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestOrderedOptions_NullIsEmpty(t *testing.T) {
	var d SlotDescriptor
	if err := json.Unmarshal([]byte(`{"component_type": "clock", "options": null}`), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(d.Options) != 0 {
		t.Errorf("options = %v, want empty", d.Options)
	}
}

func TestSlotDescriptor_JSON(t *testing.T) {
	var d SlotDescriptor
	input := `{"id": "slot-1", "component_type": "text", "column_start": 1, "row_start": 2,
		"column_end": 3, "row_end": 4, "options": {"body": "hi", "size": 14}}`
	if err := json.Unmarshal([]byte(input), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if d.ID != "slot-1" || d.ComponentType != "text" {
		t.Errorf("descriptor = %+v", d)
	}
	if d.Grid != (Grid{ColumnStart: 1, RowStart: 2, ColumnEnd: 3, RowEnd: 4}) {
		t.Errorf("grid = %+v", d.Grid)
	}
	if v, ok := d.Options.Get("size"); !ok || v.Num() != 14 {
		t.Errorf("size option = %v, %v", v, ok)
	}
}

func TestOptionValue_Equal(t *testing.T) {
	tests := []struct {
		a, b OptionValue
		want bool
	}{
		{StringValue("1"), StringValue("1"), true},
		{StringValue("1"), NumberValue(1), false},
		{NumberValue(2.5), NumberValue(2.5), true},
		{mustNumber("2"), mustNumber("2.0"), true},
		{mustNumber("9007199254740993"), mustNumber("9007199254740992"), false},
		{mustNumber("32"), NumberValue(32), true},
		{BoolValue(true), BoolValue(false), false},
		{NullValue(), OptionValue{}, true},
		{NullValue(), StringValue(""), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func mustNumber(literal string) OptionValue {
	var v OptionValue
	if err := json.Unmarshal([]byte(literal), &v); err != nil {
		panic(err)
	}
	return v
}

func TestOptionValue_LargeIntegerRoundTrip(t *testing.T) {
	var opts OrderedOptions
	if err := json.Unmarshal([]byte(`{"n": 9007199254740993, "f": 1.25e3}`), &opts); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	out, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if want := `{"n":9007199254740993,"f":1.25e3}`; string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}

	n, _ := opts.Get("n")
	stored, err := n.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var scanned OptionValue
	if err := scanned.Scan(stored); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned.Number() != "9007199254740993" {
		t.Errorf("stored number = %q, want 9007199254740993", scanned.Number())
	}
	if f, _ := opts.Get("f"); f.Num() != 1250 {
		t.Errorf("Num() = %v, want 1250", f.Num())
	}
}

func TestOptionValue_MarshalRejectsNaN(t *testing.T) {
	if _, err := json.Marshal(NumberValue(math.NaN())); !errors.Is(err, ErrValidation) {
		t.Errorf("Marshal(NaN) error = %v, want ErrValidation", err)
	}
}

func TestOptionValue_Scan(t *testing.T) {
	var v OptionValue
	if err := v.Scan([]byte(`"red"`)); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !v.Equal(StringValue("red")) {
		t.Errorf("Scan = %v, want \"red\"", v)
	}
	if err := v.Scan(int64(3)); err == nil {
		t.Error("expected error scanning an integer column")
	}
}

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    OrderedOptions
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid", OrderedOptions{{Key: "a", Value: StringValue("x")}}, false},
		{"empty key", OrderedOptions{{Key: "", Value: StringValue("x")}}, true},
		{"duplicate key", OrderedOptions{{Key: "a"}, {Key: "a"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOptions(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v should match ErrValidation", err)
			}
		})
	}
}

func TestValidateSlotDescriptors(t *testing.T) {
	tests := []struct {
		name    string
		desired []SlotDescriptor
		wantErr bool
	}{
		{"empty list", nil, false},
		{"new and existing", []SlotDescriptor{{ComponentType: "clock"}, {ID: "slot-1", ComponentType: "text"}}, false},
		{"missing component", []SlotDescriptor{{ID: "slot-1"}}, true},
		{"duplicate id", []SlotDescriptor{{ID: "slot-1", ComponentType: "a"}, {ID: "slot-1", ComponentType: "b"}}, true},
		{"bad options", []SlotDescriptor{{ComponentType: "a", Options: OrderedOptions{{Key: ""}}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlotDescriptors(tt.desired)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSlotDescriptors() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
