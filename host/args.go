package host

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// convertArgs matches args against the parameters of ft. Values must be
// assignable to the parameter type, or losslessly convertible between numeric
// kinds (so JSON numbers reach int parameters). Nothing else is coerced.
func convertArgs(ft reflect.Type, args []any) ([]reflect.Value, error) {
	n := ft.NumIn()
	switch {
	case ft.IsVariadic() && len(args) < n-1:
		return nil, fmt.Errorf("want at least %d arguments, got %d", n-1, len(args))
	case !ft.IsVariadic() && len(args) != n:
		return nil, fmt.Errorf("want %d arguments, got %d", n, len(args))
	}

	out := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= n-1 {
			pt = ft.In(n - 1).Elem()
		} else {
			pt = ft.In(i)
		}
		v, err := convertArg(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func convertArg(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", t)
	}

	if num, ok := a.(json.Number); ok {
		if isNumeric(t.Kind()) {
			return convertNumber(num, t)
		}
	}

	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	switch {
	case isNumeric(v.Kind()) && isNumeric(t.Kind()):
		return convertNumeric(v, t)

	case v.Kind() == t.Kind() && (t.Kind() == reflect.String || t.Kind() == reflect.Bool):
		return v.Convert(t), nil

	case v.Kind() == reflect.Slice && t.Kind() == reflect.Slice:
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := convertArg(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(e)
		}
		return out, nil

	case v.Kind() == reflect.Map && t.Kind() == reflect.Map:
		out := reflect.MakeMapWithSize(t, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, err := convertArg(iter.Key().Interface(), t.Key())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			e, err := convertArg(iter.Value().Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			out.SetMapIndex(k, e)
		}
		return out, nil
	}

	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), t)
}

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// convertNumeric converts between numeric kinds, refusing any conversion that
// would lose information. Integers converted to floats must be exactly
// representable in the target; floats narrowed to float32 round to nearest.
func convertNumeric(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	zero := reflect.Zero(t)
	lossy := fmt.Errorf("%v (%s) does not fit %s", v.Interface(), v.Type(), t)

	switch {
	case isInt(t.Kind()):
		var i int64
		switch {
		case isInt(v.Kind()):
			i = v.Int()
		case isUint(v.Kind()):
			if v.Uint() > math.MaxInt64 {
				return reflect.Value{}, lossy
			}
			i = int64(v.Uint())
		default:
			f := v.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return reflect.Value{}, lossy
			}
			i = int64(f)
		}
		if zero.OverflowInt(i) {
			return reflect.Value{}, lossy
		}
		return reflect.ValueOf(i).Convert(t), nil

	case isUint(t.Kind()):
		var u uint64
		switch {
		case isInt(v.Kind()):
			if v.Int() < 0 {
				return reflect.Value{}, lossy
			}
			u = uint64(v.Int())
		case isUint(v.Kind()):
			u = v.Uint()
		default:
			f := v.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return reflect.Value{}, lossy
			}
			u = uint64(f)
		}
		if zero.OverflowUint(u) {
			return reflect.Value{}, lossy
		}
		return reflect.ValueOf(u).Convert(t), nil

	default:
		var f float64
		switch {
		case isInt(v.Kind()):
			f = float64(v.Int())
		case isUint(v.Kind()):
			f = float64(v.Uint())
		default:
			f = v.Float()
		}
		if zero.OverflowFloat(f) {
			return reflect.Value{}, lossy
		}
		out := reflect.ValueOf(f).Convert(t)
		back := out.Float()
		switch {
		case isInt(v.Kind()):
			if back >= 0x1p63 || int64(back) != v.Int() {
				return reflect.Value{}, lossy
			}
		case isUint(v.Kind()):
			if back >= 0x1p64 || uint64(back) != v.Uint() {
				return reflect.Value{}, lossy
			}
		}
		return out, nil
	}
}

func convertNumber(num json.Number, t reflect.Type) (reflect.Value, error) {
	if i, err := num.Int64(); err == nil {
		return convertNumeric(reflect.ValueOf(i), t)
	}
	f, err := num.Float64()
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%q is not a number", num)
	}
	return convertNumeric(reflect.ValueOf(f), t)
}
