package code_test

import (
	"fmt"

	"github.com/jonwraymond/toolcompile/code"
)

func ExampleNewReferenceSet() {
	set := code.NewReferenceSet(
		code.Reference{Capability: "core", Path: "fmt"},
		code.Reference{Capability: "strings", Path: "strings"},
		code.Reference{Capability: "text", Path: "strings"},
	)
	fmt.Println(set.Paths())
	// Output: [fmt strings]
}

func ExampleEntryPoint_Signature() {
	ep := code.EntryPoint{
		Type:       "Calc",
		Method:     "Div",
		Params:     []string{"float64", "float64"},
		ParamNames: []string{"x", "y"},
		Results:    []string{"float64", "error"},
	}
	fmt.Println(ep.Signature())
	// Output: Calc.Div(x float64, y float64) (float64, error)
}

func ExampleFailed() {
	res := code.Failed(code.FailureMemberNotFound, "no member %q", "Mul")
	fmt.Println(res.OK())
	fmt.Println(res.Err())
	// Output:
	// false
	// MemberNotFound: no member "Mul"
}
