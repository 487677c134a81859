package host

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestConvertArg(t *testing.T) {
	tests := []struct {
		name    string
		arg     any
		typ     reflect.Type
		want    any
		wantErr bool
	}{
		{name: "int to int", arg: 3, typ: reflect.TypeOf(0), want: 3},
		{name: "whole float to int", arg: 3.0, typ: reflect.TypeOf(0), want: 3},
		{name: "fractional float to int", arg: 3.5, typ: reflect.TypeOf(0), wantErr: true},
		{name: "int to int8 overflow", arg: 300, typ: reflect.TypeOf(int8(0)), wantErr: true},
		{name: "negative to uint", arg: -1, typ: reflect.TypeOf(uint(0)), wantErr: true},
		{name: "huge uint to int64", arg: uint64(math.MaxUint64), typ: reflect.TypeOf(int64(0)), wantErr: true},
		{name: "int to float", arg: 2, typ: reflect.TypeOf(0.0), want: 2.0},
		{name: "2^53 to float", arg: int64(1 << 53), typ: reflect.TypeOf(0.0), want: float64(1 << 53)},
		{name: "2^53+1 to float", arg: int64(1<<53 + 1), typ: reflect.TypeOf(0.0), wantErr: true},
		{name: "negative 2^53+1 to float", arg: -int64(1<<53 + 1), typ: reflect.TypeOf(0.0), wantErr: true},
		{name: "max int64 to float", arg: int64(math.MaxInt64), typ: reflect.TypeOf(0.0), wantErr: true},
		{name: "min int64 to float", arg: int64(math.MinInt64), typ: reflect.TypeOf(0.0), want: float64(math.MinInt64)},
		{name: "max uint64 to float", arg: uint64(math.MaxUint64), typ: reflect.TypeOf(0.0), wantErr: true},
		{name: "2^24+1 to float32", arg: 1<<24 + 1, typ: reflect.TypeOf(float32(0)), wantErr: true},
		{name: "json 2^53+1 to float", arg: json.Number("9007199254740993"), typ: reflect.TypeOf(0.0), wantErr: true},
		{name: "json integer", arg: json.Number("42"), typ: reflect.TypeOf(int32(0)), want: int32(42)},
		{name: "json float", arg: json.Number("1.5"), typ: reflect.TypeOf(float32(0)), want: float32(1.5)},
		{name: "json fraction to int", arg: json.Number("1.5"), typ: reflect.TypeOf(0), wantErr: true},
		{name: "string to int", arg: "3", typ: reflect.TypeOf(0), wantErr: true},
		{name: "int to string", arg: 3, typ: reflect.TypeOf(""), wantErr: true},
		{name: "string to any", arg: "x", typ: reflect.TypeOf((*any)(nil)).Elem(), want: "x"},
		{name: "nil to slice", arg: nil, typ: reflect.TypeOf([]int(nil)), want: []int(nil)},
		{name: "nil to int", arg: nil, typ: reflect.TypeOf(0), wantErr: true},
		{name: "bool", arg: true, typ: reflect.TypeOf(false), want: true},
		{name: "any slice to int slice", arg: []any{1.0, 2.0}, typ: reflect.TypeOf([]int(nil)), want: []int{1, 2}},
		{name: "bad slice element", arg: []any{1, "x"}, typ: reflect.TypeOf([]int(nil)), wantErr: true},
		{
			name: "map conversion",
			arg:  map[string]any{"a": 1.0},
			typ:  reflect.TypeOf(map[string]int(nil)),
			want: map[string]int{"a": 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertArg(tt.arg, tt.typ)
			if tt.wantErr {
				if err == nil {
					t.Errorf("convertArg() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("convertArg() error = %v", err)
			}
			if got.Type() != tt.typ {
				t.Errorf("type = %s, want %s", got.Type(), tt.typ)
			}
			if !reflect.DeepEqual(got.Interface(), tt.want) {
				t.Errorf("value = %#v, want %#v", got.Interface(), tt.want)
			}
		})
	}
}

func TestConvertArgs_Arity(t *testing.T) {
	fixed := reflect.TypeOf(func(int, int) int { return 0 })
	variadic := reflect.TypeOf(func(string, ...int) {})

	if _, err := convertArgs(fixed, []any{1}); err == nil {
		t.Error("too few arguments accepted")
	}
	if _, err := convertArgs(fixed, []any{1, 2, 3}); err == nil {
		t.Error("too many arguments accepted")
	}
	if _, err := convertArgs(variadic, nil); err == nil {
		t.Error("missing required argument accepted")
	}
	args, err := convertArgs(variadic, []any{"x", 1, 2.0})
	if err != nil {
		t.Fatalf("convertArgs() error = %v", err)
	}
	if len(args) != 3 || args[2].Interface() != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestCollect(t *testing.T) {
	ft := reflect.TypeOf(func() (int, string, error) { return 0, "", nil })
	out := collect(ft, []reflect.Value{
		reflect.ValueOf(1),
		reflect.ValueOf("a"),
		reflect.Zero(errorType),
	})
	vals, ok := out.value.([]any)
	if out.fault != "" || !ok || len(vals) != 2 {
		t.Errorf("collect() = %+v", out)
	}
}
