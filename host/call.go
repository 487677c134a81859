package host

import (
	"fmt"
	"reflect"

	"github.com/jonwraymond/toolcompile/code"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// outcome is what one call produced.
type outcome struct {
	value any
	fault string
}

func (o outcome) result() code.InvocationResult {
	if o.fault != "" {
		return code.Failed(code.FailureInvocationFault, "%s", o.fault)
	}
	return code.Succeeded(o.value)
}

// call invokes fn, converting panics and trailing non-nil errors into faults.
func call(fn reflect.Value, args []reflect.Value) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{fault: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return collect(fn.Type(), fn.Call(args))
}

// collect maps results onto a single value. A trailing error result is
// treated as the failure channel; several remaining results become []any.
func collect(ft reflect.Type, res []reflect.Value) outcome {
	if n := len(res); n > 0 && ft.Out(n-1) == errorType {
		if e := res[n-1]; !e.IsNil() {
			err, _ := e.Interface().(error)
			msg := "error"
			if err != nil {
				msg = err.Error()
			}
			return outcome{fault: msg}
		}
		res = res[:n-1]
	}

	switch len(res) {
	case 0:
		return outcome{}
	case 1:
		return outcome{value: export(res[0])}
	default:
		values := make([]any, len(res))
		for i, r := range res {
			values[i] = export(r)
		}
		return outcome{value: values}
	}
}

func export(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}
